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

// The NAT instance initialization binary
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/keboola/nat-instance/pkg/awsutils"
	"github.com/keboola/nat-instance/pkg/networkutils"
	"github.com/keboola/nat-instance/pkg/utils/logger"
	"github.com/keboola/nat-instance/pkg/version"
	"github.com/keboola/nat-instance/utils"
	metrics "github.com/keboola/nat-instance/utils/prometheusmetrics"
)

const (
	appName = "nat-init"

	// defaultMetricsPort is the port for prometheus metrics
	defaultMetricsPort = 61680

	// Environment variable to enable the metrics endpoint; a oneshot run has
	// no scrape window, so the endpoint stays off unless asked for
	envDisableMetrics = "DISABLE_METRICS"
	envMetricsPort    = "METRICS_PORT"

	// Environment variable holding the ordered Elastic IP pool, comma separated
	envEIPAllocationIDs = "NAT_INSTANCE_EIP_ALLOCATION_IDS"

	// Environment variable with the Name-tag fragment of the route tables to
	// repoint at this instance
	envSubnetSuffix     = "NAT_INSTANCE_SUBNET_SUFFIX"
	defaultSubnetSuffix = "private"

	failureBanner = "NAT INSTANCE INITIALIZATION FAILED, THE ZONE IS WITHOUT EGRESS UNTIL THE NEXT RUN SUCCEEDS"
)

// fail logs the cause followed by the fixed failure banner.
func fail(log logger.Logger, format string, args ...interface{}) int {
	log.Errorf(format, args...)
	log.Error(failureBanner)
	return 1
}

func getEIPAllocationIDs() []string {
	var ids []string
	for _, id := range strings.Split(os.Getenv(envEIPAllocationIDs), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func main() {
	os.Exit(_main())
}

func _main() int {
	// Do not add anything before initializing logger
	log := logger.Get()

	var showVersion bool
	flags := pflag.NewFlagSet(appName, pflag.ExitOnError)
	flags.BoolVar(&showVersion, "version", false, "print the build version and exit")
	flags.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		flags.PrintDefaults()
	}
	if err := flags.Parse(os.Args); err != nil {
		log.Errorf("Error on parsing parameters: %s", err)
		return 1
	}
	if showVersion {
		fmt.Printf("%s %s (revision %s, %s)\n", appName, version.Version, version.Revision, version.GoVersion)
		return 0
	}

	log.Infof("Starting %s %s ...", appName, version.Version)
	version.RegisterMetric()

	if !utils.GetBoolAsStringEnvVar(envDisableMetrics, true) {
		metricsPort, err, input := utils.GetIntFromStringEnvVar(envMetricsPort, defaultMetricsPort)
		if err != nil {
			return fail(log, "%s format invalid (%s), integer required: %v", envMetricsPort, input, err)
		}
		metrics.PrometheusRegister()
		go metrics.ServeMetrics(metricsPort)
	}

	ctx := context.Background()

	cache, err := awsutils.New(ctx)
	if err != nil {
		return fail(log, "Failed to read instance metadata: %v", err)
	}
	log.Infof("Configuring %s as the NAT gateway of zone %s in %s",
		cache.GetInstanceID(), cache.GetAvailabilityZone(), cache.GetVPCID())

	vpcCIDRs, err := cache.GetVPCIPv4CIDRs()
	if err != nil {
		return fail(log, "Failed to read the VPC IPv4 CIDR blocks: %v", err)
	}

	if err := networkutils.NewNetworkAPIs().SetupNATHostNetwork(cache.GetPrimaryMAC(), vpcCIDRs); err != nil {
		return fail(log, "Failed to configure the host network for NAT: %v", err)
	}

	// Failure here does not abort the run; the EIP and route steps still
	// execute and a later run has to retry the attribute.
	if err := cache.DisableSrcDstCheck(ctx); err != nil {
		log.Errorf("COULD NOT DISABLE SOURCE/DESTINATION CHECKING, continuing anyway: %v", err)
	}

	allocationIDs := getEIPAllocationIDs()
	publicIP, err := cache.AssociateEIPFromPool(ctx, allocationIDs)
	if err != nil {
		return fail(log, "Failed to associate an Elastic IP from the pool %v: %v", allocationIDs, err)
	}
	log.Infof("Outbound traffic now leaves as %s", publicIP)

	subnetSuffix := utils.GetEnv(envSubnetSuffix, defaultSubnetSuffix)
	if err := cache.EnsureDefaultRoutes(ctx, subnetSuffix); err != nil {
		return fail(log, "Failed to repoint the default routes at this instance: %v", err)
	}

	log.Infof("NAT instance initialization done")
	return 0
}
