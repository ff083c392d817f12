// Package payload builds the transaction payloads understood by the supply
// chain transaction family and encodes them for the wire.
package payload

import (
	"fmt"
	"time"
)

// Action discriminates the body carried by a Payload.
type Action string

const (
	ActionCreateRecord   Action = "CREATE_RECORD"
	ActionCreateProposal Action = "CREATE_PROPOSAL"
)

// DataType tags the value held by a PropertyValue.
type DataType string

const (
	DataTypeString   DataType = "STRING"
	DataTypeInt      DataType = "INT"
	DataTypeFloat    DataType = "FLOAT"
	DataTypeBoolean  DataType = "BOOLEAN"
	DataTypeLocation DataType = "LOCATION"
)

// Role is the relationship a proposal offers to the receiving agent.
type Role string

const (
	RoleOwner     Role = "OWNER"
	RoleCustodian Role = "CUSTODIAN"
	RoleReporter  Role = "REPORTER"
)

// Location is a coordinate pair in whole degrees.
type Location struct {
	Latitude  int64 `cbor:"latitude" json:"latitude"`
	Longitude int64 `cbor:"longitude" json:"longitude"`
}

// PropertyValue is one typed property of a record.
type PropertyValue struct {
	Name          string    `cbor:"name" json:"name"`
	DataType      DataType  `cbor:"data_type" json:"dataType"`
	StringValue   string    `cbor:"string_value,omitempty" json:"stringValue,omitempty"`
	IntValue      int64     `cbor:"int_value,omitempty" json:"intValue,omitempty"`
	FloatValue    float64   `cbor:"float_value,omitempty" json:"floatValue,omitempty"`
	BooleanValue  bool      `cbor:"boolean_value,omitempty" json:"booleanValue,omitempty"`
	LocationValue *Location `cbor:"location_value,omitempty" json:"locationValue,omitempty"`
}

// CreateRecordAction creates a record of the given type.
type CreateRecordAction struct {
	RecordID   string          `cbor:"record_id" json:"recordId"`
	RecordType string          `cbor:"record_type" json:"recordType"`
	Properties []PropertyValue `cbor:"properties" json:"properties"`
}

// CreateProposalAction offers a role on a record to another agent.
type CreateProposalAction struct {
	RecordID       string   `cbor:"record_id" json:"recordId"`
	ReceivingAgent string   `cbor:"receiving_agent" json:"receivingAgent"`
	Role           Role     `cbor:"role" json:"role"`
	Properties     []string `cbor:"properties" json:"properties"`
}

// Payload is the envelope of a single transaction.
type Payload struct {
	Action         Action                `cbor:"action" json:"action"`
	Timestamp      int64                 `cbor:"timestamp" json:"timestamp"`
	CreateRecord   *CreateRecordAction   `cbor:"create_record,omitempty" json:"createRecord,omitempty"`
	CreateProposal *CreateProposalAction `cbor:"create_proposal,omitempty" json:"createProposal,omitempty"`
}

// RecordID returns the id of the record the payload targets.
func (p Payload) RecordID() string {
	switch {
	case p.CreateRecord != nil:
		return p.CreateRecord.RecordID
	case p.CreateProposal != nil:
		return p.CreateProposal.RecordID
	}
	return ""
}

// now is replaced in tests.
var now = time.Now

// CreateRecordParams are the inputs of CreateRecord.
type CreateRecordParams struct {
	RecordID   string
	RecordType string
	Properties []PropertyValue
}

// CreateRecord builds a record-creation payload. Properties keep the order
// they are given in.
func CreateRecord(params CreateRecordParams) (Payload, error) {
	props := make([]PropertyValue, len(params.Properties))
	for i, p := range params.Properties {
		if err := checkProperty(p); err != nil {
			return Payload{}, err
		}
		props[i] = p
		if p.LocationValue != nil {
			loc := *p.LocationValue
			props[i].LocationValue = &loc
		}
	}

	return Payload{
		Action:    ActionCreateRecord,
		Timestamp: now().Unix(),
		CreateRecord: &CreateRecordAction{
			RecordID:   params.RecordID,
			RecordType: params.RecordType,
			Properties: props,
		},
	}, nil
}

// CreateProposalParams are the inputs of CreateProposal.
type CreateProposalParams struct {
	RecordID       string
	ReceivingAgent string
	Role           Role
	Properties     []string
}

// CreateProposal builds a proposal-creation payload.
func CreateProposal(params CreateProposalParams) (Payload, error) {
	switch params.Role {
	case RoleOwner, RoleCustodian, RoleReporter:
	default:
		return Payload{}, fmt.Errorf("unknown role %q", params.Role)
	}

	props := make([]string, len(params.Properties))
	copy(props, params.Properties)

	return Payload{
		Action:    ActionCreateProposal,
		Timestamp: now().Unix(),
		CreateProposal: &CreateProposalAction{
			RecordID:       params.RecordID,
			ReceivingAgent: params.ReceivingAgent,
			Role:           params.Role,
			Properties:     props,
		},
	}, nil
}

func checkProperty(p PropertyValue) error {
	if p.Name == "" {
		return fmt.Errorf("property name is empty")
	}
	switch p.DataType {
	case DataTypeString, DataTypeInt, DataTypeFloat, DataTypeBoolean:
		if p.LocationValue != nil {
			return fmt.Errorf("property %q: %s value carries a location", p.Name, p.DataType)
		}
	case DataTypeLocation:
		if p.LocationValue == nil {
			return fmt.Errorf("property %q: location value missing", p.Name)
		}
	default:
		return fmt.Errorf("property %q: unknown data type %q", p.Name, p.DataType)
	}
	return nil
}
