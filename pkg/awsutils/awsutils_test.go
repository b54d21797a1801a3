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

package awsutils

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/golang/mock/gomock"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"

	mock_ec2wrapper "github.com/keboola/nat-instance/pkg/ec2wrapper/mocks"
)

const (
	metadataMACPath    = "network/interfaces/macs/"
	metadataMAC        = "mac"
	metadataAZ         = "placement/availability-zone"
	metadataInstanceID = "instance-id"
	metadataVpcID      = "/vpc-id"
	metadataVPCcidrs   = "/vpc-ipv4-cidr-blocks"

	az                   = "eu-central-1a"
	instanceID           = "i-0e1f3b9eb950e4980"
	primaryMAC           = "12:ef:2a:98:e5:5a"
	vpcID                = "vpc-3c133421"
	metadataVPCIPv4CIDRs = "10.0.0.0/16 10.1.0.0/16"

	eipAllocA  = "eipalloc-0a66dd4c08d0eb3c1"
	eipAllocB  = "eipalloc-0b66dd4c08d0eb3c2"
	eipAllocC  = "eipalloc-0c66dd4c08d0eb3c3"
	eipPublicA = "52.28.10.1"
	eipPublicB = "52.28.10.2"
	eipPublicC = "52.28.10.3"

	routeTableID  = "rtb-0a1b2c3d4e5f67890"
	routeTableID2 = "rtb-0f9e8d7c6b5a43210"
	subnetSuffix  = "private"
)

var errAlreadyAssociated = &smithy.GenericAPIError{
	Code:    "Resource.AlreadyAssociated",
	Message: "resource is already associated with another instance",
}

func testMetadata(overrides map[string]interface{}) FakeIMDS {
	data := map[string]interface{}{
		metadataAZ:         az,
		metadataInstanceID: instanceID,
		metadataMAC:        primaryMAC,
		metadataMACPath:    primaryMAC,
		metadataMACPath + primaryMAC + metadataVpcID:    vpcID,
		metadataMACPath + primaryMAC + metadataVPCcidrs: metadataVPCIPv4CIDRs,
	}

	for k, v := range overrides {
		data[k] = v
	}

	return FakeIMDS(data)
}

func setup(t *testing.T) (*gomock.Controller, *mock_ec2wrapper.MockEC2) {
	ctrl := gomock.NewController(t)
	return ctrl, mock_ec2wrapper.NewMockEC2(ctrl)
}

func testCache(mockEC2 *mock_ec2wrapper.MockEC2) *EC2InstanceMetadataCache {
	// zero eipBackoffInterval keeps the pool rescans instant under test
	return &EC2InstanceMetadataCache{
		availabilityZone: az,
		instanceID:       instanceID,
		primaryMAC:       primaryMAC,
		vpcID:            vpcID,
		ec2SVC:           mockEC2,
	}
}

func associateInput(allocationID string) *ec2.AssociateAddressInput {
	return &ec2.AssociateAddressInput{
		AllocationId:       aws.String(allocationID),
		InstanceId:         aws.String(instanceID),
		AllowReassociation: aws.Bool(false),
	}
}

func describeAddressesOutput() *ec2.DescribeAddressesOutput {
	return &ec2.DescribeAddressesOutput{
		Addresses: []ec2types.Address{
			{AllocationId: aws.String(eipAllocA), PublicIp: aws.String(eipPublicA)},
			{AllocationId: aws.String(eipAllocB), PublicIp: aws.String(eipPublicB)},
			{AllocationId: aws.String(eipAllocC), PublicIp: aws.String(eipPublicC)},
		},
	}
}

func routeTablesOutput(ids ...string) *ec2.DescribeRouteTablesOutput {
	return &ec2.DescribeRouteTablesOutput{
		RouteTables: lo.Map(ids, func(id string, _ int) ec2types.RouteTable {
			return ec2types.RouteTable{RouteTableId: aws.String(id)}
		}),
	}
}

func TestInitWithEC2metadata(t *testing.T) {
	ctrl, mockEC2 := setup(t)
	defer ctrl.Finish()
	mockMetadata := testMetadata(nil)

	cache := &EC2InstanceMetadataCache{imds: TypedIMDS{mockMetadata}, ec2SVC: mockEC2}
	err := cache.initWithEC2Metadata(context.Background())
	if assert.NoError(t, err) {
		assert.Equal(t, az, cache.availabilityZone)
		assert.Equal(t, instanceID, cache.instanceID)
		assert.Equal(t, primaryMAC, cache.primaryMAC)
		assert.Equal(t, vpcID, cache.vpcID)
	}
}

func TestInitWithEC2metadataErr(t *testing.T) {
	ctrl, mockEC2 := setup(t)
	defer ctrl.Finish()

	keys := []string{
		metadataAZ,
		metadataInstanceID,
		metadataMAC,
		metadataMACPath + primaryMAC + metadataVpcID,
	}

	for _, key := range keys {
		mockMetadata := testMetadata(map[string]interface{}{
			key: fmt.Errorf("An error with %s", key),
		})

		cache := &EC2InstanceMetadataCache{imds: TypedIMDS{mockMetadata}, ec2SVC: mockEC2}
		assert.Error(t, cache.initWithEC2Metadata(context.Background()), "expected error with %s", key)
	}
}

func TestInitWithEC2metadataVPCIDFromEnv(t *testing.T) {
	ctrl, mockEC2 := setup(t)
	defer ctrl.Finish()

	// the metadata service must not even be asked for the VPC ID
	mockMetadata := testMetadata(map[string]interface{}{
		metadataMACPath + primaryMAC + metadataVpcID: fmt.Errorf("unexpected vpc-id read"),
	})

	os.Setenv(envVPCID, "vpc-override")
	defer os.Unsetenv(envVPCID)

	cache := &EC2InstanceMetadataCache{imds: TypedIMDS{mockMetadata}, ec2SVC: mockEC2}
	err := cache.initWithEC2Metadata(context.Background())
	if assert.NoError(t, err) {
		assert.Equal(t, "vpc-override", cache.vpcID)
	}
}

func TestGetVPCIPv4CIDRs(t *testing.T) {
	mockMetadata := testMetadata(nil)
	cache := &EC2InstanceMetadataCache{imds: TypedIMDS{mockMetadata}, primaryMAC: primaryMAC}

	cidrs, err := cache.GetVPCIPv4CIDRs()
	if assert.NoError(t, err) {
		assert.Equal(t, []string{"10.0.0.0/16", "10.1.0.0/16"}, cidrs)
	}
}

func TestDisableSrcDstCheck(t *testing.T) {
	ctrl, mockEC2 := setup(t)
	defer ctrl.Finish()
	cache := testCache(mockEC2)

	mockEC2.EXPECT().ModifyInstanceAttribute(gomock.Any(), &ec2.ModifyInstanceAttributeInput{
		InstanceId:      aws.String(instanceID),
		SourceDestCheck: &ec2types.AttributeBooleanValue{Value: aws.Bool(false)},
	}).Return(&ec2.ModifyInstanceAttributeOutput{}, nil)

	assert.NoError(t, cache.DisableSrcDstCheck(context.Background()))
}

func TestDisableSrcDstCheckErr(t *testing.T) {
	ctrl, mockEC2 := setup(t)
	defer ctrl.Finish()
	cache := testCache(mockEC2)

	mockEC2.EXPECT().ModifyInstanceAttribute(gomock.Any(), gomock.Any()).
		Return(nil, &smithy.GenericAPIError{Code: "UnauthorizedOperation", Message: "not authorized"})

	err := cache.DisableSrcDstCheck(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), instanceID)
}

func TestAssociateEIPFromPoolFirstCandidateWins(t *testing.T) {
	ctrl, mockEC2 := setup(t)
	defer ctrl.Finish()
	cache := testCache(mockEC2)
	pool := []string{eipAllocA, eipAllocB, eipAllocC}

	mockEC2.EXPECT().DescribeAddresses(gomock.Any(), &ec2.DescribeAddressesInput{AllocationIds: pool}).
		Return(describeAddressesOutput(), nil)
	// the remaining candidates must not be touched
	mockEC2.EXPECT().AssociateAddress(gomock.Any(), associateInput(eipAllocA)).
		Return(&ec2.AssociateAddressOutput{AssociationId: aws.String("eipassoc-1")}, nil)

	publicIP, err := cache.AssociateEIPFromPool(context.Background(), pool)
	if assert.NoError(t, err) {
		assert.Equal(t, eipPublicA, publicIP)
	}
}

func TestAssociateEIPFromPoolThirdCandidateWins(t *testing.T) {
	ctrl, mockEC2 := setup(t)
	defer ctrl.Finish()
	cache := testCache(mockEC2)
	pool := []string{eipAllocA, eipAllocB, eipAllocC}

	mockEC2.EXPECT().DescribeAddresses(gomock.Any(), &ec2.DescribeAddressesInput{AllocationIds: pool}).
		Return(describeAddressesOutput(), nil)
	// candidates are tried strictly in pool order, three attempts in total
	gomock.InOrder(
		mockEC2.EXPECT().AssociateAddress(gomock.Any(), associateInput(eipAllocA)).Return(nil, errAlreadyAssociated),
		mockEC2.EXPECT().AssociateAddress(gomock.Any(), associateInput(eipAllocB)).Return(nil, errAlreadyAssociated),
		mockEC2.EXPECT().AssociateAddress(gomock.Any(), associateInput(eipAllocC)).
			Return(&ec2.AssociateAddressOutput{AssociationId: aws.String("eipassoc-1")}, nil),
	)

	publicIP, err := cache.AssociateEIPFromPool(context.Background(), pool)
	if assert.NoError(t, err) {
		assert.Equal(t, eipPublicC, publicIP)
	}
}

func TestAssociateEIPFromPoolRetriesAfterFullPassFails(t *testing.T) {
	ctrl, mockEC2 := setup(t)
	defer ctrl.Finish()
	cache := testCache(mockEC2)
	pool := []string{eipAllocA, eipAllocB}

	mockEC2.EXPECT().DescribeAddresses(gomock.Any(), &ec2.DescribeAddressesInput{AllocationIds: pool}).
		Return(describeAddressesOutput(), nil)
	// the second pass starts over from the front of the pool
	gomock.InOrder(
		mockEC2.EXPECT().AssociateAddress(gomock.Any(), associateInput(eipAllocA)).Return(nil, errAlreadyAssociated),
		mockEC2.EXPECT().AssociateAddress(gomock.Any(), associateInput(eipAllocB)).Return(nil, errAlreadyAssociated),
		mockEC2.EXPECT().AssociateAddress(gomock.Any(), associateInput(eipAllocA)).
			Return(&ec2.AssociateAddressOutput{AssociationId: aws.String("eipassoc-2")}, nil),
	)

	publicIP, err := cache.AssociateEIPFromPool(context.Background(), pool)
	if assert.NoError(t, err) {
		assert.Equal(t, eipPublicA, publicIP)
	}
}

func TestAssociateEIPFromPoolSkipsBadAllocation(t *testing.T) {
	ctrl, mockEC2 := setup(t)
	defer ctrl.Finish()
	cache := testCache(mockEC2)
	pool := []string{eipAllocA, eipAllocB}

	mockEC2.EXPECT().DescribeAddresses(gomock.Any(), &ec2.DescribeAddressesInput{AllocationIds: pool}).
		Return(describeAddressesOutput(), nil)
	gomock.InOrder(
		mockEC2.EXPECT().AssociateAddress(gomock.Any(), associateInput(eipAllocA)).
			Return(nil, &smithy.GenericAPIError{Code: "InvalidAllocationID.NotFound", Message: "does not exist"}),
		mockEC2.EXPECT().AssociateAddress(gomock.Any(), associateInput(eipAllocB)).
			Return(&ec2.AssociateAddressOutput{AssociationId: aws.String("eipassoc-3")}, nil),
	)

	publicIP, err := cache.AssociateEIPFromPool(context.Background(), pool)
	if assert.NoError(t, err) {
		assert.Equal(t, eipPublicB, publicIP)
	}
}

// Ten full passes over the pool and not a single attempt more.
func TestAssociateEIPFromPoolExhausted(t *testing.T) {
	ctrl, mockEC2 := setup(t)
	defer ctrl.Finish()
	cache := testCache(mockEC2)
	pool := []string{eipAllocA, eipAllocB}

	mockEC2.EXPECT().DescribeAddresses(gomock.Any(), &ec2.DescribeAddressesInput{AllocationIds: pool}).
		Return(describeAddressesOutput(), nil)
	mockEC2.EXPECT().AssociateAddress(gomock.Any(), associateInput(eipAllocA)).
		Return(nil, errAlreadyAssociated).Times(maxEIPAssociationPasses)
	mockEC2.EXPECT().AssociateAddress(gomock.Any(), associateInput(eipAllocB)).
		Return(nil, errAlreadyAssociated).Times(maxEIPAssociationPasses)

	publicIP, err := cache.AssociateEIPFromPool(context.Background(), pool)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "exhausted the pool")
	assert.Empty(t, publicIP)
}

func TestAssociateEIPFromPoolDescribeFails(t *testing.T) {
	ctrl, mockEC2 := setup(t)
	defer ctrl.Finish()
	cache := testCache(mockEC2)
	pool := []string{eipAllocA}

	// a pool that cannot be described fails the run before any association attempt
	mockEC2.EXPECT().DescribeAddresses(gomock.Any(), gomock.Any()).
		Return(nil, &smithy.GenericAPIError{Code: "InvalidAllocationID.NotFound", Message: "does not exist"})

	_, err := cache.AssociateEIPFromPool(context.Background(), pool)
	assert.Error(t, err)
}

func TestAssociateEIPFromPoolEmptyPool(t *testing.T) {
	ctrl, mockEC2 := setup(t)
	defer ctrl.Finish()
	cache := testCache(mockEC2)

	_, err := cache.AssociateEIPFromPool(context.Background(), nil)
	assert.Error(t, err)
}

func TestEnsureDefaultRoutesReplaceWins(t *testing.T) {
	ctrl, mockEC2 := setup(t)
	defer ctrl.Finish()
	cache := testCache(mockEC2)

	mockEC2.EXPECT().DescribeRouteTables(gomock.Any(), &ec2.DescribeRouteTablesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("vpc-id"), Values: []string{vpcID}},
			{Name: aws.String("tag:Name"), Values: []string{"*private*eu-central-1a*", "*eu-central-1a*private*"}},
		},
	}).Return(routeTablesOutput(routeTableID), nil)
	// a successful replace means create must never be called
	mockEC2.EXPECT().ReplaceRoute(gomock.Any(), &ec2.ReplaceRouteInput{
		RouteTableId:         aws.String(routeTableID),
		DestinationCidrBlock: aws.String(defaultRouteCIDR),
		InstanceId:           aws.String(instanceID),
	}).Return(&ec2.ReplaceRouteOutput{}, nil)

	assert.NoError(t, cache.EnsureDefaultRoutes(context.Background(), subnetSuffix))
}

func TestEnsureDefaultRoutesCreatesWhenReplaceFails(t *testing.T) {
	ctrl, mockEC2 := setup(t)
	defer ctrl.Finish()
	cache := testCache(mockEC2)

	mockEC2.EXPECT().DescribeRouteTables(gomock.Any(), gomock.Any()).
		Return(routeTablesOutput(routeTableID), nil)
	mockEC2.EXPECT().ReplaceRoute(gomock.Any(), gomock.Any()).
		Return(nil, &smithy.GenericAPIError{Code: "InvalidRoute.NotFound", Message: "no such route"})
	mockEC2.EXPECT().CreateRoute(gomock.Any(), &ec2.CreateRouteInput{
		RouteTableId:         aws.String(routeTableID),
		DestinationCidrBlock: aws.String(defaultRouteCIDR),
		InstanceId:           aws.String(instanceID),
	}).Return(&ec2.CreateRouteOutput{Return: aws.Bool(true)}, nil)

	assert.NoError(t, cache.EnsureDefaultRoutes(context.Background(), subnetSuffix))
}

func TestEnsureDefaultRoutesBothFail(t *testing.T) {
	ctrl, mockEC2 := setup(t)
	defer ctrl.Finish()
	cache := testCache(mockEC2)

	mockEC2.EXPECT().DescribeRouteTables(gomock.Any(), gomock.Any()).
		Return(routeTablesOutput(routeTableID), nil)
	mockEC2.EXPECT().ReplaceRoute(gomock.Any(), gomock.Any()).
		Return(nil, &smithy.GenericAPIError{Code: "InvalidRoute.NotFound", Message: "no such route"})
	mockEC2.EXPECT().CreateRoute(gomock.Any(), gomock.Any()).
		Return(nil, &smithy.GenericAPIError{Code: "RouteAlreadyExists", Message: "route exists"})

	err := cache.EnsureDefaultRoutes(context.Background(), subnetSuffix)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), routeTableID)
}

func TestEnsureDefaultRoutesNoTableFound(t *testing.T) {
	ctrl, mockEC2 := setup(t)
	defer ctrl.Finish()
	cache := testCache(mockEC2)

	// no replace or create may be attempted when nothing matched
	mockEC2.EXPECT().DescribeRouteTables(gomock.Any(), gomock.Any()).
		Return(routeTablesOutput(), nil)

	err := cache.EnsureDefaultRoutes(context.Background(), subnetSuffix)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no route table found")
}

func TestEnsureDefaultRoutesMultipleTables(t *testing.T) {
	ctrl, mockEC2 := setup(t)
	defer ctrl.Finish()
	cache := testCache(mockEC2)

	mockEC2.EXPECT().DescribeRouteTables(gomock.Any(), gomock.Any()).
		Return(routeTablesOutput(routeTableID, routeTableID2), nil)
	mockEC2.EXPECT().ReplaceRoute(gomock.Any(), &ec2.ReplaceRouteInput{
		RouteTableId:         aws.String(routeTableID),
		DestinationCidrBlock: aws.String(defaultRouteCIDR),
		InstanceId:           aws.String(instanceID),
	}).Return(&ec2.ReplaceRouteOutput{}, nil)
	mockEC2.EXPECT().ReplaceRoute(gomock.Any(), &ec2.ReplaceRouteInput{
		RouteTableId:         aws.String(routeTableID2),
		DestinationCidrBlock: aws.String(defaultRouteCIDR),
		InstanceId:           aws.String(instanceID),
	}).Return(nil, &smithy.GenericAPIError{Code: "InvalidRoute.NotFound", Message: "no such route"})
	mockEC2.EXPECT().CreateRoute(gomock.Any(), &ec2.CreateRouteInput{
		RouteTableId:         aws.String(routeTableID2),
		DestinationCidrBlock: aws.String(defaultRouteCIDR),
		InstanceId:           aws.String(instanceID),
	}).Return(&ec2.CreateRouteOutput{Return: aws.Bool(true)}, nil)

	assert.NoError(t, cache.EnsureDefaultRoutes(context.Background(), subnetSuffix))
}

func TestEnsureDefaultRoutesDescribeFails(t *testing.T) {
	ctrl, mockEC2 := setup(t)
	defer ctrl.Finish()
	cache := testCache(mockEC2)

	mockEC2.EXPECT().DescribeRouteTables(gomock.Any(), gomock.Any()).
		Return(nil, &smithy.GenericAPIError{Code: "UnauthorizedOperation", Message: "not authorized"})

	err := cache.EnsureDefaultRoutes(context.Background(), subnetSuffix)
	assert.Error(t, err)
}
