package form

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"facility-form-backend/internal/parse"
	"facility-form-backend/internal/payload"
)

// RecordType is the record type of every record this form creates.
const RecordType = "facility"

// Submitter sends an ordered batch of payloads to the ledger. With atomic
// set the ledger must apply all of them or none.
type Submitter interface {
	Submit(ctx context.Context, payloads []payload.Payload, atomic bool) error
}

// FacilityPath is the detail view of a submitted facility.
func FacilityPath(licenseNumber string) string {
	return "/facility/" + url.PathEscape(licenseNumber)
}

// BuildPayloads assembles the record payload followed by one reporter
// proposal per keyed row. Keyless rows are skipped whatever their
// properties. Coordinates are parsed with parse.ToInt, which truncates
// fractional degrees.
func BuildPayloads(d Draft, reporters Reporters) ([]payload.Payload, error) {
	record, err := payload.CreateRecord(payload.CreateRecordParams{
		RecordID:   d.LicenseNumber,
		RecordType: RecordType,
		Properties: []payload.PropertyValue{
			{
				Name:        "facilityLicenseType",
				DataType:    payload.DataTypeString,
				StringValue: d.LicenseType,
			},
			{
				Name:        "facilityLegalName",
				DataType:    payload.DataTypeString,
				StringValue: d.LegalName,
			},
			{
				Name:        "facilityManager",
				DataType:    payload.DataTypeString,
				StringValue: d.Manager,
			},
			{
				Name:     "location",
				DataType: payload.DataTypeLocation,
				LocationValue: &payload.Location{
					Latitude:  parse.ToInt(d.Latitude),
					Longitude: parse.ToInt(d.Longitude),
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("building record payload: %w", err)
	}

	payloads := []payload.Payload{record}
	for _, rep := range reporters.Resolved() {
		proposal, err := payload.CreateProposal(payload.CreateProposalParams{
			RecordID:       d.LicenseNumber,
			ReceivingAgent: rep.Key,
			Role:           payload.RoleReporter,
			Properties:     rep.Properties,
		})
		if err != nil {
			return nil, fmt.Errorf("building proposal for %s: %w", rep.Key, err)
		}
		payloads = append(payloads, proposal)
	}
	return payloads, nil
}

// Validate checks the draft for the problems the form otherwise lets
// through silently.
func Validate(d Draft, reporters Reporters) error {
	var errs ValidationErrors
	if strings.TrimSpace(d.LicenseNumber) == "" {
		errs = append(errs, FieldError{Field: FieldLicenseNumber, Message: "is required"})
	}
	if _, err := parse.ParseCoordinate(d.Latitude, LatitudeBound); err != nil {
		errs = append(errs, FieldError{Field: FieldLatitude, Message: err.Error()})
	}
	if _, err := parse.ParseCoordinate(d.Longitude, LongitudeBound); err != nil {
		errs = append(errs, FieldError{Field: FieldLongitude, Message: err.Error()})
	}
	for i, rep := range reporters {
		if rep.Key == "" && rep.Input != "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("reporters[%d]", i),
				Message: fmt.Sprintf("%q does not match a known agent", rep.Input),
			})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
