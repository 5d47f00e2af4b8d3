/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package metrics

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gavv/httpexpect/v2"
	"github.com/stretchr/testify/assert"
)

type fakeHealthChecker struct {
	err error
}

func (f *fakeHealthChecker) IsHealthy(context.Context) error {
	return f.err
}

func Test_MetricsServer_WithPort(t *testing.T) {
	ms := NewMetricsServer(WithPort(9999))
	assert.Equal(t, 9999, ms.port)
	assert.Equal(t, DefaultMetricsPort, NewMetricsServer().port)
}

func Test_MetricsServer_WithHealthCheckExecutor(t *testing.T) {
	executed := false
	executor := func() error {
		executed = true
		return nil
	}
	ms := NewMetricsServer(WithHealthCheckExecutor(executor))
	assert.Equal(t, 1, len(ms.healthCheckExecutors))
	err := ms.healthCheckExecutors[0]()
	assert.NoError(t, err)
	assert.True(t, executed)
}

func Test_MetricsServer_Endpoints(t *testing.T) {
	ctx := context.Background()
	BuildInfo.WithLabelValues("test", "v0.0.0", "linux/amd64").Set(1)
	hc := &fakeHealthChecker{}
	ms := NewMetricsServer(WithHealthCheckers(ctx, hc))
	srv := httptest.NewServer(ms.Handler(ctx))
	defer srv.Close()

	e := httpexpect.Default(t, srv.URL)
	e.GET("/livez").Expect().Status(204)
	e.GET("/readyz").Expect().Status(204)
	e.GET("/metrics").Expect().Status(200).Body().Contains("build_info")

	hc.err = errors.New("operator failed")
	e.GET("/readyz").Expect().Status(500).Body().IsEqual("operator failed")
}
