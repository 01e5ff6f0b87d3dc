package protocol

import (
	"errors"
	"fmt"
	"net/netip"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	hexPattern   = regexp.MustCompile(`^[0-9a-fA-F]+$`)
	panIDPattern = regexp.MustCompile(`^0[xX][0-9a-fA-F]{1,4}$`)
)

func init() {
	validate = validator.New()
	// Report fields by their wire key.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	validate.RegisterValidation("hexkey", func(fl validator.FieldLevel) bool {
		return hexPattern.MatchString(fl.Field().String())
	})
	validate.RegisterValidation("panid", func(fl validator.FieldLevel) bool {
		_, err := ParsePanID(fl.Field().String())
		return err == nil
	})
	validate.RegisterValidation("meshprefix", func(fl validator.FieldLevel) bool {
		_, err := ParsePrefix(fl.Field().String())
		return err == nil
	})
}

// ValidationError reports the first invalid request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// IsValidationError reports whether err was produced by request validation.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NormalizePrefix appends the default /64 length to a bare address.
func NormalizePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" || strings.Contains(prefix, "/") {
		return prefix
	}
	return prefix + "/64"
}

// ParsePrefix parses an IPv6 on-mesh prefix, normalizing a bare address.
func ParsePrefix(prefix string) (netip.Prefix, error) {
	p, err := netip.ParsePrefix(NormalizePrefix(prefix))
	if err != nil {
		return netip.Prefix{}, err
	}
	if !p.Addr().Is6() || p.Addr().Is4In6() {
		return netip.Prefix{}, fmt.Errorf("%s is not an IPv6 prefix", prefix)
	}
	return p, nil
}

// ParsePanID converts the "0x" hex form to its numeric value.
func ParsePanID(s string) (uint16, error) {
	if !panIDPattern.MatchString(s) {
		return 0, fmt.Errorf("invalid PAN ID %q", s)
	}
	v, err := strconv.ParseUint(s[2:], 16, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

// ValidateForm normalizes and validates a form request.
func ValidateForm(p *FormParams) error {
	if p == nil {
		return &ValidationError{Field: "request", Message: "cannot be nil"}
	}
	p.Prefix = NormalizePrefix(p.Prefix)
	if err := validate.Struct(p); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// ValidateJoin normalizes and validates a join request.
func ValidateJoin(p *JoinParams) error {
	if p == nil {
		return &ValidationError{Field: "request", Message: "cannot be nil"}
	}
	p.Prefix = NormalizePrefix(p.Prefix)
	if err := validate.Struct(p); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// ValidatePrefix normalizes and validates an on-mesh prefix request.
func ValidatePrefix(p *PrefixParams) error {
	if p == nil {
		return &ValidationError{Field: "request", Message: "cannot be nil"}
	}
	p.Prefix = NormalizePrefix(p.Prefix)
	if err := validate.Struct(p); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// ValidateNodeState checks a PUT /node/state command.
func ValidateNodeState(state string) error {
	if state != StateEnable && state != StateDisable {
		return &ValidationError{Field: "state", Message: "must be one of enable disable"}
	}
	return nil
}

// ValidateDatasetKind checks a dataset kind.
func ValidateDatasetKind(kind string) error {
	if kind != DatasetActive && kind != DatasetPending {
		return &ValidationError{Field: "dataset", Message: "must be one of active pending"}
	}
	return nil
}

// ValidateActiveDataset normalizes and validates an active dataset update.
func ValidateActiveDataset(d *ActiveDataset) error {
	if d == nil {
		return &ValidationError{Field: "request", Message: "cannot be nil"}
	}
	if d.MeshLocalPrefix != "" {
		d.MeshLocalPrefix = NormalizePrefix(d.MeshLocalPrefix)
	}
	if err := validate.Struct(d); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// ValidatePendingDataset normalizes and validates a pending dataset update.
func ValidatePendingDataset(d *PendingDataset) error {
	if d == nil {
		return &ValidationError{Field: "request", Message: "cannot be nil"}
	}
	if d.ActiveDataset != nil {
		if err := ValidateActiveDataset(d.ActiveDataset); err != nil {
			return err
		}
	}
	return nil
}

// ValidateDatasetTLVs checks a hex encoded dataset.
func ValidateDatasetTLVs(tlvs string) error {
	switch {
	case tlvs == "":
		return &ValidationError{Field: "tlvs", Message: "field is required"}
	case len(tlvs)%2 != 0 || !hexPattern.MatchString(tlvs):
		return &ValidationError{Field: "tlvs", Message: "must be hexadecimal with an even length"}
	case len(tlvs) > MaxDatasetTLVLength*2:
		return &ValidationError{Field: "tlvs", Message: fmt.Sprintf("must not exceed %d bytes", MaxDatasetTLVLength)}
	}
	return nil
}

// ValidateCommission validates a commissioning request.
func ValidateCommission(p *CommissionParams) error {
	if p == nil {
		return &ValidationError{Field: "request", Message: "cannot be nil"}
	}
	if err := validate.Struct(p); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// formatValidationError converts validator errors to a more user-friendly format
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return err
	}

	e := validationErrs[0]
	field := e.Field()
	param := e.Param()

	switch e.Tag() {
	case "required":
		return &ValidationError{Field: field, Message: "field is required"}
	case "min":
		return &ValidationError{Field: field, Message: "must be at least " + param}
	case "max":
		return &ValidationError{Field: field, Message: "must not exceed " + param}
	case "len":
		return &ValidationError{Field: field, Message: "must be exactly " + param + " characters"}
	case "oneof":
		return &ValidationError{Field: field, Message: "must be one of " + param}
	case "hexkey":
		return &ValidationError{Field: field, Message: "must be hexadecimal"}
	case "panid":
		return &ValidationError{Field: field, Message: "must be a 0x-prefixed hex value up to 0xffff"}
	case "meshprefix":
		return &ValidationError{Field: field, Message: "must be an IPv6 prefix"}
	default:
		return &ValidationError{Field: field, Message: fmt.Sprintf("validation failed (%s)", e.Tag())}
	}
}
