package form

import "fmt"

// Field names accepted by SetField.
const (
	FieldLicenseNumber = "licenseNumber"
	FieldLicenseType   = "licenseType"
	FieldLegalName     = "legalName"
	FieldManager       = "manager"
	FieldLatitude      = "latitude"
	FieldLongitude     = "longitude"
)

// Coordinate bounds offered to clients as input hints.
const (
	LatitudeBound  = 90
	LongitudeBound = 180
)

// Draft holds the facility fields as typed. Coordinates stay raw strings
// until submission.
type Draft struct {
	LicenseNumber string `json:"licenseNumber"`
	LicenseType   string `json:"licenseType"`
	LegalName     string `json:"legalName"`
	Manager       string `json:"manager"`
	Latitude      string `json:"latitude"`
	Longitude     string `json:"longitude"`
}

// SetField overwrites the named field with the raw input value.
func (d *Draft) SetField(name, value string) error {
	switch name {
	case FieldLicenseNumber:
		d.LicenseNumber = value
	case FieldLicenseType:
		d.LicenseType = value
	case FieldLegalName:
		d.LegalName = value
	case FieldManager:
		d.Manager = value
	case FieldLatitude:
		d.Latitude = value
	case FieldLongitude:
		d.Longitude = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return nil
}
