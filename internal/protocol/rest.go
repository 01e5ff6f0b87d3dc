// Package protocol defines the wire types of the border router REST API.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Version of the dashboard wire format.
const Version = "v1.0.0"

// Envelope wraps every response of the border router GUI endpoints.
type Envelope struct {
	Error   int             `json:"error"`
	Result  json.RawMessage `json:"result,omitempty"`
	Message string          `json:"message"`
}

// Error codes carried in Envelope.Error.
const (
	CodeOK            = 0
	CodeFailed        = 1
	CodeInvalidParams = 2
	CodeBorderRouter  = 3
	CodeNotReady      = 4
)

// Properties is the status map returned by /get_properties.
type Properties map[string]string

// Keys of Properties, in display order.
var PropertyKeys = []string{
	"Network:Name",
	"Network:PANID",
	"Network:PartitionID",
	"Network:XPANID",
	"Network:BorderAgentID",
	"IPv6:LinkLocalAddress",
	"IPv6:RoutingLocalAddress",
	"IPv6:MeshLocalAddress",
	"IPv6:MeshLocalPrefix",
	"OpenThread:Version",
	"OpenThread:Version API",
	"OpenThread:PSKc",
	"RCP:State",
	"RCP:Channel",
	"RCP:EUI64",
	"RCP:TxPower",
	"RCP:Version",
	"WPAN service",
}

// UnmarshalJSON accepts string or numeric property values.
func (p *Properties) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Properties, len(raw))
	for k, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			out[k] = s
			continue
		}
		out[k] = string(v)
	}
	*p = out
	return nil
}

// AvailableNetwork is one result of a network scan.
type AvailableNetwork struct {
	ID          int    `json:"id"`
	NetworkName string `json:"nn"`
	ExtPanID    string `json:"ep"`
	PanID       string `json:"pi"`
	ExtAddress  string `json:"ha"`
	Channel     int    `json:"ch"`
	RSSI        int    `json:"ri"`
	LinkQuality int    `json:"li"`
}

// Credential types accepted by JoinParams.
const (
	CredentialNetworkKey = "networkKeyType"
	CredentialPSKd       = "pskdType"
)

// Flag is a boolean the border router reads as a number. A JSON true or
// false would be read as NaN there, so it is sent as 1 or 0. Both forms
// are accepted on input.
type Flag bool

func (f Flag) MarshalJSON() ([]byte, error) {
	if f {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}

func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "null":
		return nil
	case "true":
		*f = true
		return nil
	case "false":
		*f = false
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("flag must be a boolean or number, got %s", data)
	}
	*f = n != 0
	return nil
}

// FormParams creates a new Thread network.
type FormParams struct {
	NetworkName  string `json:"networkName" validate:"required,max=16"`
	Channel      int    `json:"channel" validate:"min=11,max=26"`
	PanID        string `json:"panId" validate:"required,panid"`
	ExtPanID     string `json:"extPanId" validate:"required,len=16,hexkey"`
	Prefix       string `json:"prefix,omitempty" validate:"omitempty,meshprefix"`
	NetworkKey   string `json:"networkKey" validate:"required,len=32,hexkey"`
	Passphrase   string `json:"passphrase,omitempty" validate:"omitempty,max=63"`
	DefaultRoute Flag   `json:"defaultRoute"`
}

// JoinParams joins the network found at Index of the last scan. The border
// router requires both credentials whichever type is selected.
type JoinParams struct {
	Index          int    `json:"index" validate:"min=0"`
	CredentialType string `json:"credentialType" validate:"required,oneof=networkKeyType pskdType"`
	NetworkKey     string `json:"networkKey" validate:"required,len=32,hexkey"`
	PSKd           string `json:"pskd" validate:"required,max=62"`
	Prefix         string `json:"prefix" validate:"required,meshprefix"`
	DefaultRoute   Flag   `json:"defaultRoute"`
}

// PrefixParams adds or removes an on-mesh prefix.
type PrefixParams struct {
	Prefix       string `json:"prefix" validate:"required,meshprefix"`
	DefaultRoute Flag   `json:"defaultRoute"`
}

// CommissionParams starts the commissioner for a joiner.
type CommissionParams struct {
	PSKd string `json:"pskd" validate:"required,max=63"`
}
