// Package topology turns Thread network diagnostics into a node/link graph
// for force-directed layout.
package topology

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrMissingRloc16 is returned when a diagnostic record or node information
// document has no Rloc16 field.
var ErrMissingRloc16 = errors.New("topology: record has no Rloc16")

// LeaderData identifies the current partition leader.
type LeaderData struct {
	PartitionID       uint32 `json:"PartitionId"`
	Weighting         uint8  `json:"Weighting"`
	DataVersion       uint8  `json:"DataVersion"`
	StableDataVersion uint8  `json:"StableDataVersion"`
	LeaderRouterID    uint8  `json:"LeaderRouterId"`
}

// RouteData is one entry of a router's route table TLV.
type RouteData struct {
	RouteID        uint8 `json:"RouteId"`
	LinkQualityIn  uint8 `json:"LinkQualityIn"`
	LinkQualityOut uint8 `json:"LinkQualityOut"`
	RouteCost      uint8 `json:"RouteCost"`
}

// Route is the route TLV of a diagnostic record.
type Route struct {
	IDSequence uint8       `json:"IdSequence"`
	RouteData  []RouteData `json:"RouteData"`
}

// ChildEntry is one entry of a router's child table.
type ChildEntry struct {
	ChildID uint16 `json:"ChildId"`
	Timeout uint32 `json:"Timeout"`
	Mode    Mode   `json:"Mode"`
}

// Mode is the MLE link mode of a device.
type Mode struct {
	RxOnWhenIdle bool
	DeviceType   bool // full thread device
	NetworkData  bool // full network data
}

// String returns the OpenThread CLI flag form: r, d, n, or "-" for none.
func (m Mode) String() string {
	var b strings.Builder
	if m.RxOnWhenIdle {
		b.WriteByte('r')
	}
	if m.DeviceType {
		b.WriteByte('d')
	}
	if m.NetworkData {
		b.WriteByte('n')
	}
	if b.Len() == 0 {
		return "-"
	}
	return b.String()
}

// MarshalJSON encodes the mode as its flag string.
func (m Mode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts either the flag string ("rdn", "rn", "-") or the
// object form {RxOnWhenIdle, DeviceType, NetworkData} with 0/1 or bool values.
//
// The round trip through MarshalJSON is lossy. Characters other than r, d
// and n are dropped, and a value decoded from the object form is encoded
// back as a flag string rather than the original object.
func (m *Mode) UnmarshalJSON(data []byte) error {
	*m = Mode{}
	if string(data) == "null" {
		return nil
	}

	var flags string
	if err := json.Unmarshal(data, &flags); err == nil {
		m.RxOnWhenIdle = strings.ContainsRune(flags, 'r')
		m.DeviceType = strings.ContainsRune(flags, 'd')
		m.NetworkData = strings.ContainsRune(flags, 'n')
		return nil
	}

	var obj struct {
		RxOnWhenIdle flag `json:"RxOnWhenIdle"`
		DeviceType   flag `json:"DeviceType"`
		NetworkData  flag `json:"NetworkData"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	m.RxOnWhenIdle = bool(obj.RxOnWhenIdle)
	m.DeviceType = bool(obj.DeviceType)
	m.NetworkData = bool(obj.NetworkData)
	return nil
}

// flag decodes a JSON bool or number as a bool.
type flag bool

func (f *flag) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flag(b)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = n != 0
	return nil
}

// DiagnosticRecord is the set of diagnostic TLVs reported by one device.
// A record is a router iff ChildTable is non-nil, even when empty.
type DiagnosticRecord struct {
	ExtAddress      string          `json:"ExtAddress,omitempty"`
	Rloc16          uint16          `json:"Rloc16"`
	Mode            *Mode           `json:"Mode,omitempty"`
	Timeout         *uint32         `json:"Timeout,omitempty"`
	Connectivity    json.RawMessage `json:"Connectivity,omitempty"`
	Route           *Route          `json:"Route,omitempty"`
	LeaderData      LeaderData      `json:"LeaderData"`
	NetworkData     string          `json:"NetworkData,omitempty"`
	IP6AddressList  json.RawMessage `json:"IP6AddressList,omitempty"`
	MACCounters     json.RawMessage `json:"MACCounters,omitempty"`
	BatteryLevel    *uint8          `json:"BatteryLevel,omitempty"`
	SupplyVoltage   *uint16         `json:"SupplyVoltage,omitempty"`
	ChildTable      []ChildEntry    `json:"ChildTable,omitempty"`
	ChannelPages    string          `json:"ChannelPages,omitempty"`
	MaxChildTimeout *uint32         `json:"MaxChildTimeout,omitempty"`
}

// RouteID returns the router id: the top six bits of Rloc16.
func (r *DiagnosticRecord) RouteID() uint8 {
	return uint8(r.Rloc16 >> 10)
}

// IsRouter reports whether the record carries a child table.
func (r *DiagnosticRecord) IsRouter() bool {
	return r.ChildTable != nil
}

// UnmarshalJSON rejects records without Rloc16 and keeps an empty
// "ChildTable": [] distinct from an absent one.
func (r *DiagnosticRecord) UnmarshalJSON(data []byte) error {
	type plain DiagnosticRecord
	aux := struct {
		*plain
		Rloc16     *uint16       `json:"Rloc16"`
		ChildTable *[]ChildEntry `json:"ChildTable"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Rloc16 == nil {
		return ErrMissingRloc16
	}
	r.Rloc16 = *aux.Rloc16
	r.ChildTable = nil
	if aux.ChildTable != nil {
		r.ChildTable = *aux.ChildTable
		if r.ChildTable == nil {
			r.ChildTable = []ChildEntry{}
		}
	}
	return nil
}

// NodeInfo describes the device answering the queries.
type NodeInfo struct {
	NetworkName string     `json:"NetworkName"`
	ExtPanID    string     `json:"ExtPanId,omitempty"`
	ExtAddress  string     `json:"ExtAddress,omitempty"`
	RlocAddress string     `json:"RlocAddress,omitempty"`
	LeaderData  LeaderData `json:"LeaderData"`
	State       int        `json:"State"`
	Rloc16      uint16     `json:"Rloc16"`
	NumOfRouter int        `json:"NumOfRouter"`
}

// UnmarshalJSON rejects node information without Rloc16.
func (n *NodeInfo) UnmarshalJSON(data []byte) error {
	type plain NodeInfo
	aux := struct {
		*plain
		Rloc16 *uint16 `json:"Rloc16"`
	}{plain: (*plain)(n)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Rloc16 == nil {
		return ErrMissingRloc16
	}
	n.Rloc16 = *aux.Rloc16
	return nil
}

// DecodeDiagnostics parses a JSON array of diagnostic records.
func DecodeDiagnostics(data []byte) ([]DiagnosticRecord, error) {
	var records []DiagnosticRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []DiagnosticRecord{}
	}
	return records, nil
}

// DecodeNodeInfo parses a node information document.
func DecodeNodeInfo(data []byte) (*NodeInfo, error) {
	var info NodeInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}
