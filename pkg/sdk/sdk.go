// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package sdk defines the wire contract between the optplug hot loader
// and plugin executables, built on HashiCorp go-plugin over net/rpc.
// Plugin authors implement Extension and call Serve from main.
package sdk

import (
	"net/rpc"

	hashiplug "github.com/hashicorp/go-plugin"
)

// ExtensionPluginName is the dispense key for the extension plugin.
const ExtensionPluginName = "extension"

// Handshake guards against launching arbitrary executables as plugins.
var Handshake = hashiplug.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "OPTPLUG_PLUGIN",
	MagicCookieValue: "f2f0e1c9d6f34c0d9e3b5f7a1b8c4d2e",
}

// Info identifies a running extension.
type Info struct {
	Name    string
	Version string
}

// Extension is the interface plugin executables implement.
type Extension interface {
	// Describe returns the extension's identity, checked against the
	// archive manifest after the process starts.
	Describe() (Info, error)

	// Activate brings the extension into service.
	Activate() error
}

// ExtensionPlugin is the go-plugin adapter for Extension.
type ExtensionPlugin struct {
	Impl Extension
}

// Server returns the RPC server side of the plugin.
func (p *ExtensionPlugin) Server(*hashiplug.MuxBroker) (any, error) {
	return &rpcServer{impl: p.Impl}, nil
}

// Client returns the RPC client side of the plugin.
func (*ExtensionPlugin) Client(_ *hashiplug.MuxBroker, c *rpc.Client) (any, error) {
	return &rpcClient{client: c}, nil
}

// PluginMap is the plugin set served over the handshake.
var PluginMap = map[string]hashiplug.Plugin{
	ExtensionPluginName: &ExtensionPlugin{},
}

// Serve runs the plugin side. Call from the plugin executable's main.
func Serve(impl Extension) {
	hashiplug.Serve(&hashiplug.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins: map[string]hashiplug.Plugin{
			ExtensionPluginName: &ExtensionPlugin{Impl: impl},
		},
	})
}

// rpcServer adapts Extension to net/rpc.
type rpcServer struct {
	impl Extension
}

func (s *rpcServer) Describe(_ any, resp *Info) error {
	info, err := s.impl.Describe()
	if err != nil {
		return err
	}
	*resp = info
	return nil
}

func (s *rpcServer) Activate(_ any, _ *struct{}) error {
	return s.impl.Activate()
}

// rpcClient is the host-side Extension backed by net/rpc.
type rpcClient struct {
	client *rpc.Client
}

// Compile-time interface check.
var _ Extension = (*rpcClient)(nil)

func (c *rpcClient) Describe() (Info, error) {
	var resp Info
	err := c.client.Call("Plugin.Describe", new(any), &resp)
	return resp, err
}

func (c *rpcClient) Activate() error {
	return c.client.Call("Plugin.Activate", new(any), new(struct{}))
}
