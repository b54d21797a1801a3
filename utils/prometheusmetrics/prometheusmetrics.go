// Copyright Keboola s.r.o. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"). You may
// not use this file except in compliance with the License. A copy of the
// License is located at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// or in the "license" file accompanying this file. This file is distributed
// on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either
// express or implied. See the License for the specific language governing
// permissions and limitations under the License.

package prometheusmetrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/keboola/nat-instance/pkg/utils/logger"
	"github.com/keboola/nat-instance/pkg/utils/retry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var log = logger.Get()

var (
	AwsAPILatency = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name: "natinstance_aws_api_latency_ms",
			Help: "AWS API call latency in ms",
		},
		[]string{"api", "error", "status"},
	)
	AwsAPIErr = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "natinstance_aws_api_error_count",
			Help: "The number of times AWS API returns an error",
		},
		[]string{"api", "error"},
	)
	AwsUtilsErr = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "natinstance_aws_utils_error_count",
			Help: "The number of errors not handled in awsutils library",
		},
		[]string{"fn", "error"},
	)
	Ec2ApiReq = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "natinstance_ec2api_req_count",
			Help: "The number of requests made to EC2 APIs",
		},
		[]string{"fn"},
	)
	Ec2ApiErr = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "natinstance_ec2api_error_count",
			Help: "The number of failed EC2 APIs requests",
		},
		[]string{"fn"},
	)
	EipAssociationAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "natinstance_eip_association_attempt_count",
			Help: "The number of elastic IP association attempts",
		},
		[]string{"allocation_id"},
	)
	EipAssociationConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "natinstance_eip_association_conflict_count",
			Help: "The number of association attempts rejected because the address was bound elsewhere",
		},
		[]string{"allocation_id"},
	)
	EipPoolScanPasses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "natinstance_eip_pool_scan_pass_count",
			Help: "The number of full scan passes over the elastic IP pool",
		},
	)
	RouteReconcileCnt = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "natinstance_route_reconcile_count",
			Help: "The number of default route updates partitioned by operation",
		},
		[]string{"op"},
	)
)

// ServeMetrics sets up the metrics endpoint
func ServeMetrics(metricsPort int) {
	log.Infof("Serving metrics on port %d", metricsPort)
	server := SetupMetricsServer(metricsPort)
	for {
		once := sync.Once{}
		_ = retry.WithBackoff(retry.NewSimpleBackoff(time.Second, time.Minute, 0.2, 2), func() error {
			err := server.ListenAndServe()
			once.Do(func() {
				log.Warnf("Error running http API: %v", err)
			})
			return err
		})
	}
}

func SetupMetricsServer(metricsPort int) *http.Server {
	serveMux := http.NewServeMux()
	serveMux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:         ":" + strconv.Itoa(metricsPort),
		Handler:      serveMux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	return server
}

func PrometheusRegister() {
	prometheus.MustRegister(AwsAPILatency)
	prometheus.MustRegister(AwsAPIErr)
	prometheus.MustRegister(AwsUtilsErr)
	prometheus.MustRegister(Ec2ApiReq)
	prometheus.MustRegister(Ec2ApiErr)
	prometheus.MustRegister(EipAssociationAttempts)
	prometheus.MustRegister(EipAssociationConflicts)
	prometheus.MustRegister(EipPoolScanPasses)
	prometheus.MustRegister(RouteReconcileCnt)
}
