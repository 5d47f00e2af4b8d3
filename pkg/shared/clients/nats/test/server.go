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

package test

import (
	"testing"

	"github.com/nats-io/nats-server/v2/server"
	natstestserver "github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"

	natsclient "github.com/numaproj/numaslice/pkg/shared/clients/nats"
)

// RunJetStreamServer starts a jetstream server on a random port, storing into a temp dir
// removed at the end of the test.
func RunJetStreamServer(t *testing.T) *server.Server {
	t.Helper()
	opts := natstestserver.DefaultTestOptions
	opts.Port = -1 // Random port
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	return natstestserver.RunServer(&opts)
}

// ShutdownJetStreamServer shuts down the jetstream server and waits for it to exit.
func ShutdownJetStreamServer(t *testing.T, s *server.Server) {
	t.Helper()
	s.Shutdown()
	s.WaitForShutdown()
}

// JetStreamClient returns a client connected to s and its JetStream context.
func JetStreamClient(t *testing.T, s *server.Server) (*natsclient.Client, nats.JetStreamContext) {
	t.Helper()
	c := natsclient.NewTestClientWithServer(t, s)
	js, err := c.JetStreamContext()
	if err != nil {
		c.Close()
		t.Fatalf("failed to get a jetstream context: %v", err)
	}
	return c, js
}
