package controller

import (
	"context"
)

// GetRegistryMetadata probes the registry's health endpoint and updates the locally
// tracked registry API version if the registry advertises one.
// The version drives feature gating such as digest verification support on uploads.
func (c *Controller) GetRegistryMetadata(ctx context.Context) error {
	// The readiness check performs the request and records the advertised API version
	// on the client as a side effect.
	return c.Registry.ReadinessCheck(ctx)()
}
