// Copyright Keboola s.r.o. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"). You may
// not use this file except in compliance with the License. A copy of the
// License is located at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// or in the "license" file accompanying this file. This file is distributed
// on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either
// express or implied. See the License for the specific language governing
// permissions and limitations under the License.

// Package awsutils is a collection of methods to turn the instance into the
// active NAT gateway of its availability zone through the EC2 control plane.
package awsutils

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"

	"github.com/keboola/nat-instance/pkg/awsutils/awssession"
	"github.com/keboola/nat-instance/pkg/ec2wrapper"
	"github.com/keboola/nat-instance/pkg/utils/logger"
	"github.com/keboola/nat-instance/pkg/utils/retry"
	"github.com/keboola/nat-instance/utils/prometheusmetrics"
)

const (
	// envVPCID overrides the VPC ID discovered from the metadata service.
	envVPCID = "NAT_INSTANCE_VPC_ID"

	// A peer instance replaced in another zone may still hold an address from
	// the shared pool during simultaneous startup, so the pool is rescanned
	// after a fixed pause until an address frees up or the passes run out.
	maxEIPAssociationPasses   = 10
	defaultEIPBackoffInterval = 60 * time.Second

	defaultRouteCIDR = "0.0.0.0/0"
)

var (
	awsAPIError        smithy.APIError
	awsGenericAPIError *smithy.GenericAPIError
)

var log = logger.Get()

// APIs defines the control-plane calls used to turn the instance into a NAT
// gateway. The APIs are not thread-safe.
type APIs interface {
	// DisableSrcDstCheck turns off source/destination checking on the instance.
	DisableSrcDstCheck(ctx context.Context) error

	// AssociateEIPFromPool binds the first available Elastic IP from the pool
	// to the instance and returns its public address.
	AssociateEIPFromPool(ctx context.Context, allocationIDs []string) (string, error)

	// EnsureDefaultRoutes points the default route of the zone's route tables
	// at this instance.
	EnsureDefaultRoutes(ctx context.Context, subnetSuffix string) error

	// GetInstanceID returns the ID of the instance.
	GetInstanceID() string

	// GetAvailabilityZone returns the AZ the instance launched in.
	GetAvailabilityZone() string

	// GetPrimaryMAC returns the MAC address of the primary interface.
	GetPrimaryMAC() string

	// GetVPCID returns the VPC the primary interface resides in.
	GetVPCID() string

	// GetVPCIPv4CIDRs returns the IPv4 CIDR blocks of the VPC.
	GetVPCIPv4CIDRs() ([]string, error)
}

// EC2InstanceMetadataCache caches instance metadata.
type EC2InstanceMetadataCache struct {
	// metadata info
	availabilityZone string
	instanceID       string
	primaryMAC       string
	region           string
	vpcID            string

	eipBackoffInterval time.Duration

	imds   TypedIMDS
	ec2SVC ec2wrapper.EC2
}

var _ APIs = &EC2InstanceMetadataCache{}

// imdsRequestError tags a metadata failure with the path that produced it.
type imdsRequestError struct {
	requestKey string
	err        error
}

var _ error = &imdsRequestError{}

func newIMDSRequestError(requestKey string, err error) *imdsRequestError {
	return &imdsRequestError{
		requestKey: requestKey,
		err:        err,
	}
}

func (e *imdsRequestError) Error() string {
	return fmt.Sprintf("failed to retrieve %s from instance metadata %v", e.requestKey, e.err)
}

func (e *imdsRequestError) Unwrap() error {
	return e.err
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start) / time.Millisecond)
}

func awsAPIErrInc(api string, err error) {
	if errors.As(err, &awsAPIError) {
		prometheusmetrics.AwsAPIErr.With(prometheus.Labels{"api": api, "error": awsAPIError.ErrorCode()}).Inc()
	}
}

func awsUtilsErrInc(fn string, err error) {
	if errors.As(err, &awsAPIError) {
		prometheusmetrics.AwsUtilsErr.With(prometheus.Labels{"fn": fn, "error": err.Error()}).Inc()
	}
}

func awsReqStatus(err error) string {
	if err == nil {
		return "200"
	}
	if errors.As(err, &awsGenericAPIError) {
		return fmt.Sprint(awsGenericAPIError.ErrorCode())
	}
	return "" // Unknown HTTP status code
}

// imdsClient adapts the SDK IMDS client to EC2MetadataIface.
type imdsClient struct {
	client *imds.Client
}

func (i imdsClient) GetMetadataWithContext(ctx context.Context, p string) (string, error) {
	output, err := i.client.GetMetadata(ctx, &imds.GetMetadataInput{Path: p})
	if err != nil {
		return "", err
	}
	defer output.Content.Close()
	data, err := io.ReadAll(output.Content)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

type instrumentedIMDS struct {
	EC2MetadataIface
}

func (i instrumentedIMDS) GetMetadataWithContext(ctx context.Context, p string) (string, error) {
	start := time.Now()
	result, err := i.EC2MetadataIface.GetMetadataWithContext(ctx, p)
	duration := msSince(start)

	prometheusmetrics.AwsAPILatency.WithLabelValues("GetMetadata", fmt.Sprint(err != nil), awsReqStatus(err)).Observe(duration)

	if err != nil {
		return "", newIMDSRequestError(p, err)
	}
	return result, nil
}

// New creates an EC2InstanceMetadataCache
func New(ctx context.Context) (*EC2InstanceMetadataCache, error) {
	awsCfg, err := awssession.New(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "instance metadata: failed to load AWS config")
	}

	imdsSVC := imds.NewFromConfig(awsCfg)
	cache := &EC2InstanceMetadataCache{eipBackoffInterval: defaultEIPBackoffInterval}
	cache.imds = TypedIMDS{instrumentedIMDS{imdsClient{imdsSVC}}}

	region, err := imdsSVC.GetRegion(ctx, &imds.GetRegionInput{})
	if err != nil {
		log.Errorf("Failed to retrieve region data from instance metadata %v", err)
		return nil, errors.Wrap(err, "instance metadata: failed to retrieve region data")
	}
	cache.region = region.Region
	log.Debugf("Discovered region: %s", cache.region)

	awsCfg.Region = cache.region
	cache.ec2SVC = ec2wrapper.New(awsCfg)

	err = cache.initWithEC2Metadata(ctx)
	if err != nil {
		return nil, err
	}
	return cache, nil
}

// initWithEC2Metadata initializes the EC2InstanceMetadataCache with the data
// retrieved from the EC2 metadata service. Any failed read is fatal for the
// whole run.
func (cache *EC2InstanceMetadataCache) initWithEC2Metadata(ctx context.Context) error {
	var err error
	// retrieve availability-zone
	cache.availabilityZone, err = cache.imds.GetAZ(ctx)
	if err != nil {
		awsAPIErrInc("GetAZ", err)
		return err
	}
	log.Debugf("Found availability zone: %s ", cache.availabilityZone)

	// retrieve instance-id
	cache.instanceID, err = cache.imds.GetInstanceID(ctx)
	if err != nil {
		awsAPIErrInc("GetInstanceID", err)
		return err
	}
	log.Debugf("Found instance-id: %s ", cache.instanceID)

	// retrieve primary interface's mac
	mac, err := cache.imds.GetMAC(ctx)
	if err != nil {
		awsAPIErrInc("GetMAC", err)
		return err
	}
	cache.primaryMAC = mac
	log.Debugf("Found primary interface's MAC address: %s", mac)

	// The VPC ID is usually injected at deployment time; fall back to the
	// metadata service when it is not.
	if vpcID := os.Getenv(envVPCID); vpcID != "" {
		cache.vpcID = vpcID
	} else {
		cache.vpcID, err = cache.imds.GetVpcID(ctx, mac)
		if err != nil {
			awsAPIErrInc("GetVpcID", err)
			return err
		}
	}
	log.Debugf("Found vpc-id: %s ", cache.vpcID)

	return nil
}

// DisableSrcDstCheck turns off source/destination checking on the instance so
// the network will deliver traffic not addressed to the instance itself.
func (cache *EC2InstanceMetadataCache) DisableSrcDstCheck(ctx context.Context) error {
	input := &ec2.ModifyInstanceAttributeInput{
		InstanceId:      aws.String(cache.instanceID),
		SourceDestCheck: &ec2types.AttributeBooleanValue{Value: aws.Bool(false)},
	}

	start := time.Now()
	_, err := cache.ec2SVC.ModifyInstanceAttribute(ctx, input)
	prometheusmetrics.Ec2ApiReq.WithLabelValues("ModifyInstanceAttribute").Inc()
	prometheusmetrics.AwsAPILatency.WithLabelValues("ModifyInstanceAttribute", fmt.Sprint(err != nil), awsReqStatus(err)).Observe(msSince(start))
	if err != nil {
		awsAPIErrInc("ModifyInstanceAttribute", err)
		prometheusmetrics.Ec2ApiErr.WithLabelValues("ModifyInstanceAttribute").Inc()
		return errors.Wrapf(err, "disable source/destination check: failed for instance %s", cache.instanceID)
	}
	log.Infof("Disabled source/destination check on %s", cache.instanceID)
	return nil
}

// AssociateEIPFromPool attempts to associate each allocation ID, in pool
// order, with this instance, without stealing an address that is already
// bound elsewhere. Unsuccessful passes over the pool are repeated with a
// fixed backoff until one address sticks or the passes run out.
func (cache *EC2InstanceMetadataCache) AssociateEIPFromPool(ctx context.Context, allocationIDs []string) (string, error) {
	if len(allocationIDs) == 0 {
		return "", errors.New("associate EIP: no allocation IDs configured")
	}

	publicIPs, err := cache.describeAddressesByAllocationID(ctx, allocationIDs)
	if err != nil {
		return "", err
	}

	backoff := retry.NewSimpleBackoff(cache.eipBackoffInterval, cache.eipBackoffInterval, 0, 1)

	var associatedID string
	err = retry.NWithBackoffCtx(ctx, backoff, maxEIPAssociationPasses, func() error {
		prometheusmetrics.EipPoolScanPasses.Inc()
		var lastErr error
		for _, allocationID := range allocationIDs {
			if err := cache.tryAssociateAddress(ctx, allocationID); err != nil {
				lastErr = err
				continue
			}
			associatedID = allocationID
			return nil
		}
		return errors.Wrapf(lastErr, "associate EIP: exhausted the pool of %d allocation IDs", len(allocationIDs))
	})
	if err != nil {
		awsUtilsErrInc("AssociateEIPFromPool", err)
		log.Errorf("Giving up associating an Elastic IP with %s: %v", cache.instanceID, err)
		return "", err
	}

	publicIP := publicIPs[associatedID]
	log.Infof("Elastic IP %s (%s) is now associated with this instance", publicIP, associatedID)
	return publicIP, nil
}

// describeAddressesByAllocationID resolves the pool upfront so a bad pool
// configuration fails the run before any association attempt is made.
func (cache *EC2InstanceMetadataCache) describeAddressesByAllocationID(ctx context.Context, allocationIDs []string) (map[string]string, error) {
	input := &ec2.DescribeAddressesInput{AllocationIds: allocationIDs}

	start := time.Now()
	output, err := cache.ec2SVC.DescribeAddresses(ctx, input)
	prometheusmetrics.Ec2ApiReq.WithLabelValues("DescribeAddresses").Inc()
	prometheusmetrics.AwsAPILatency.WithLabelValues("DescribeAddresses", fmt.Sprint(err != nil), awsReqStatus(err)).Observe(msSince(start))
	if err != nil {
		awsAPIErrInc("DescribeAddresses", err)
		prometheusmetrics.Ec2ApiErr.WithLabelValues("DescribeAddresses").Inc()
		log.Errorf("Unable to describe the configured Elastic IP pool: %v", err)
		return nil, errors.Wrap(err, "associate EIP: failed to describe the allocation ID pool")
	}

	publicIPs := lo.SliceToMap(output.Addresses, func(addr ec2types.Address) (string, string) {
		return aws.ToString(addr.AllocationId), aws.ToString(addr.PublicIp)
	})
	log.Debugf("Resolved Elastic IP pool: %v", publicIPs)
	return publicIPs, nil
}

func (cache *EC2InstanceMetadataCache) tryAssociateAddress(ctx context.Context, allocationID string) error {
	input := &ec2.AssociateAddressInput{
		AllocationId:       aws.String(allocationID),
		InstanceId:         aws.String(cache.instanceID),
		AllowReassociation: aws.Bool(false),
	}

	start := time.Now()
	output, err := cache.ec2SVC.AssociateAddress(ctx, input)
	prometheusmetrics.Ec2ApiReq.WithLabelValues("AssociateAddress").Inc()
	prometheusmetrics.AwsAPILatency.WithLabelValues("AssociateAddress", fmt.Sprint(err != nil), awsReqStatus(err)).Observe(msSince(start))
	prometheusmetrics.EipAssociationAttempts.WithLabelValues(allocationID).Inc()
	if err != nil {
		awsAPIErrInc("AssociateAddress", err)
		prometheusmetrics.Ec2ApiErr.WithLabelValues("AssociateAddress").Inc()
		if errors.As(err, &awsAPIError) && awsAPIError.ErrorCode() == "Resource.AlreadyAssociated" {
			prometheusmetrics.EipAssociationConflicts.WithLabelValues(allocationID).Inc()
			log.Debugf("Elastic IP %s is currently bound elsewhere: %v", allocationID, err)
		} else {
			log.Warnf("Failed to associate Elastic IP %s: %v", allocationID, err)
		}
		return err
	}
	log.Infof("Associated Elastic IP %s with association ID %s", allocationID, aws.ToString(output.AssociationId))
	return nil
}

// EnsureDefaultRoutes finds the route tables tagged for this instance's
// availability zone in the VPC and repoints their default route at the
// instance. Finding no table at all is an error.
func (cache *EC2InstanceMetadataCache) EnsureDefaultRoutes(ctx context.Context, subnetSuffix string) error {
	tableIDs, err := cache.findZoneRouteTables(ctx, subnetSuffix)
	if err != nil {
		return err
	}
	if len(tableIDs) == 0 {
		return errors.Errorf("ensure default routes: no route table found for VPC %s, zone %s, subnet suffix %q",
			cache.vpcID, cache.availabilityZone, subnetSuffix)
	}

	for _, tableID := range tableIDs {
		if err := cache.ensureDefaultRoute(ctx, tableID); err != nil {
			return err
		}
	}
	return nil
}

func (cache *EC2InstanceMetadataCache) findZoneRouteTables(ctx context.Context, subnetSuffix string) ([]string, error) {
	input := &ec2.DescribeRouteTablesInput{
		Filters: []ec2types.Filter{
			{
				Name:   aws.String("vpc-id"),
				Values: []string{cache.vpcID},
			},
			{
				// Both tag orderings are in use across deployments.
				Name: aws.String("tag:Name"),
				Values: []string{
					fmt.Sprintf("*%s*%s*", subnetSuffix, cache.availabilityZone),
					fmt.Sprintf("*%s*%s*", cache.availabilityZone, subnetSuffix),
				},
			},
		},
	}

	start := time.Now()
	output, err := cache.ec2SVC.DescribeRouteTables(ctx, input)
	prometheusmetrics.Ec2ApiReq.WithLabelValues("DescribeRouteTables").Inc()
	prometheusmetrics.AwsAPILatency.WithLabelValues("DescribeRouteTables", fmt.Sprint(err != nil), awsReqStatus(err)).Observe(msSince(start))
	if err != nil {
		awsAPIErrInc("DescribeRouteTables", err)
		prometheusmetrics.Ec2ApiErr.WithLabelValues("DescribeRouteTables").Inc()
		return nil, errors.Wrap(err, "ensure default routes: failed to describe route tables")
	}

	tableIDs := lo.Map(output.RouteTables, func(table ec2types.RouteTable, _ int) string {
		return aws.ToString(table.RouteTableId)
	})
	log.Debugf("Found route tables %v for zone %s", tableIDs, cache.availabilityZone)
	return tableIDs, nil
}

// ensureDefaultRoute replaces the default route of the table; only when the
// replace is rejected (no default route to replace) is a create attempted.
func (cache *EC2InstanceMetadataCache) ensureDefaultRoute(ctx context.Context, tableID string) error {
	replaceInput := &ec2.ReplaceRouteInput{
		RouteTableId:         aws.String(tableID),
		DestinationCidrBlock: aws.String(defaultRouteCIDR),
		InstanceId:           aws.String(cache.instanceID),
	}

	start := time.Now()
	_, replaceErr := cache.ec2SVC.ReplaceRoute(ctx, replaceInput)
	prometheusmetrics.Ec2ApiReq.WithLabelValues("ReplaceRoute").Inc()
	prometheusmetrics.AwsAPILatency.WithLabelValues("ReplaceRoute", fmt.Sprint(replaceErr != nil), awsReqStatus(replaceErr)).Observe(msSince(start))
	if replaceErr == nil {
		prometheusmetrics.RouteReconcileCnt.WithLabelValues("replace").Inc()
		log.Infof("Repointed the default route of %s at %s", tableID, cache.instanceID)
		return nil
	}
	awsAPIErrInc("ReplaceRoute", replaceErr)
	prometheusmetrics.Ec2ApiErr.WithLabelValues("ReplaceRoute").Inc()
	log.Debugf("Replacing the default route of %s failed, creating it instead: %v", tableID, replaceErr)

	createInput := &ec2.CreateRouteInput{
		RouteTableId:         aws.String(tableID),
		DestinationCidrBlock: aws.String(defaultRouteCIDR),
		InstanceId:           aws.String(cache.instanceID),
	}

	start = time.Now()
	_, createErr := cache.ec2SVC.CreateRoute(ctx, createInput)
	prometheusmetrics.Ec2ApiReq.WithLabelValues("CreateRoute").Inc()
	prometheusmetrics.AwsAPILatency.WithLabelValues("CreateRoute", fmt.Sprint(createErr != nil), awsReqStatus(createErr)).Observe(msSince(start))
	if createErr != nil {
		awsAPIErrInc("CreateRoute", createErr)
		prometheusmetrics.Ec2ApiErr.WithLabelValues("CreateRoute").Inc()
		return errors.Wrapf(createErr, "ensure default routes: table %s accepted neither replace (%v) nor create", tableID, replaceErr)
	}
	prometheusmetrics.RouteReconcileCnt.WithLabelValues("create").Inc()
	log.Infof("Created the default route of %s via %s", tableID, cache.instanceID)
	return nil
}

// GetInstanceID returns the ID of the instance
func (cache *EC2InstanceMetadataCache) GetInstanceID() string {
	return cache.instanceID
}

// GetAvailabilityZone returns the availability zone the instance launched in
func (cache *EC2InstanceMetadataCache) GetAvailabilityZone() string {
	return cache.availabilityZone
}

// GetPrimaryMAC returns the MAC address of the primary interface
func (cache *EC2InstanceMetadataCache) GetPrimaryMAC() string {
	return cache.primaryMAC
}

// GetRegion returns the region the instance launched in
func (cache *EC2InstanceMetadataCache) GetRegion() string {
	return cache.region
}

// GetVPCID returns the VPC of the primary interface
func (cache *EC2InstanceMetadataCache) GetVPCID() string {
	return cache.vpcID
}

// GetVPCIPv4CIDRs returns the IPv4 CIDR blocks of the VPC
func (cache *EC2InstanceMetadataCache) GetVPCIPv4CIDRs() ([]string, error) {
	ctx := context.TODO()

	ipnets, err := cache.imds.GetVPCIPv4CIDRBlocks(ctx, cache.primaryMAC)
	if err != nil {
		awsAPIErrInc("GetVPCIPv4CIDRBlocks", err)
		return nil, err
	}

	// TODO: keep as net.IPNet and remove this round-trip to/from string
	asStrs := make([]string, len(ipnets))
	for i, ipnet := range ipnets {
		asStrs[i] = ipnet.String()
	}

	return asStrs, nil
}
