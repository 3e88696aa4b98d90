package schema

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/spec-kit/lead-intake-service/internal/domain"
)

// FieldError describes a single validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldErrors collects every violated rule for a payload.
type FieldErrors []FieldError

func (e FieldErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, fe := range e {
		msgs = append(msgs, fe.Field+": "+fe.Message)
	}
	return strings.Join(msgs, ", ")
}

// Details renders the errors as a field-keyed map for error responses.
func (e FieldErrors) Details() map[string]any {
	details := make(map[string]any, len(e))
	for _, fe := range e {
		if _, exists := details[fe.Field]; !exists {
			details[fe.Field] = fe.Message
		}
	}
	return details
}

// BuyerInput is the raw creation payload before normalization. Tags arrive
// as a single comma-separated string, matching the intake form field.
type BuyerInput struct {
	FullName     string  `json:"fullName" validate:"required,min=2"`
	Email        *string `json:"email" validate:"omitempty,email"`
	Phone        string  `json:"phone" validate:"required,digits,min=10,max=15"`
	City         string  `json:"city" validate:"required,oneof=Chandigarh Mohali Zirakpur Panchkula Other"`
	PropertyType string  `json:"propertyType" validate:"required,oneof=Apartment Villa Plot Office Retail"`
	BHK          *string `json:"bhk" validate:"omitempty,oneof=1 2 3 4 Studio"`
	Purpose      string  `json:"purpose" validate:"required,oneof=Buy Rent"`
	BudgetMin    *int64  `json:"budgetMin" validate:"omitempty,gte=0"`
	BudgetMax    *int64  `json:"budgetMax" validate:"omitempty,gte=0"`
	Timeline     string  `json:"timeline" validate:"required,oneof=0-3m 3-6m >6m Exploring"`
	Source       string  `json:"source" validate:"required,oneof=Website Referral Walk-in Call Other"`
	Status       string  `json:"status" validate:"omitempty,oneof=New Qualified Contacted Visited Negotiation Converted Dropped"`
	Notes        *string `json:"notes"`
	Tags         string  `json:"tags"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// phone is a digit string, not a number; "numeric" would admit signs.
	_ = v.RegisterValidation("digits", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if s == "" {
			return false
		}
		for _, r := range s {
			if r < '0' || r > '9' {
				return false
			}
		}
		return true
	})
	return v
}

// ParseBuyer validates and normalizes raw input into a typed Buyer payload.
// All rule violations are collected and returned together as FieldErrors;
// a nil error means the returned Buyer is safe to persist.
func ParseBuyer(in BuyerInput) (*domain.Buyer, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Phone = strings.TrimSpace(in.Phone)
	if in.Email != nil {
		trimmed := strings.TrimSpace(*in.Email)
		if trimmed == "" {
			in.Email = nil
		} else {
			in.Email = &trimmed
		}
	}

	var ferrs FieldErrors
	if err := validate.Struct(in); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return nil, err
		}
		for _, verr := range verrs {
			ferrs = append(ferrs, FieldError{Field: verr.Field(), Message: ruleMessage(verr)})
		}
	}

	propertyType := domain.PropertyType(in.PropertyType)
	if propertyType.RequiresBHK() {
		if in.BHK == nil {
			ferrs = append(ferrs, FieldError{Field: "bhk", Message: "bhk is required for Apartment and Villa"})
		}
	} else if in.BHK != nil {
		ferrs = append(ferrs, FieldError{Field: "bhk", Message: "bhk applies only to Apartment and Villa"})
	}

	if in.BudgetMin != nil && in.BudgetMax != nil && *in.BudgetMax < *in.BudgetMin {
		ferrs = append(ferrs, FieldError{Field: "budgetMax", Message: "budgetMax must be greater than or equal to budgetMin"})
	}

	if len(ferrs) > 0 {
		return nil, ferrs
	}

	buyer := &domain.Buyer{
		FullName:     in.FullName,
		Email:        in.Email,
		Phone:        in.Phone,
		City:         domain.City(in.City),
		PropertyType: propertyType,
		Purpose:      domain.Purpose(in.Purpose),
		BudgetMin:    in.BudgetMin,
		BudgetMax:    in.BudgetMax,
		Timeline:     domain.Timeline(in.Timeline),
		Source:       domain.Source(in.Source),
		Status:       domain.BuyerStatus(in.Status),
		Tags:         SplitTags(in.Tags),
	}
	if in.BHK != nil {
		bhk := domain.BHK(*in.BHK)
		buyer.BHK = &bhk
	}
	if in.Notes != nil {
		trimmed := strings.TrimSpace(*in.Notes)
		if trimmed != "" {
			buyer.Notes = &trimmed
		}
	}
	if buyer.Status == "" {
		buyer.Status = domain.StatusNew
	}
	return buyer, nil
}

// SplitTags derives the tag list from a comma-separated input, trimming
// whitespace and dropping empty elements while preserving order.
func SplitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		tag := strings.TrimSpace(part)
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}

func ruleMessage(verr validator.FieldError) string {
	field := verr.Field()
	switch verr.Tag() {
	case "required":
		return field + " is required"
	case "min":
		if verr.Kind().String() == "string" {
			return fmt.Sprintf("%s must be at least %s characters", field, verr.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, verr.Param())
	case "max":
		if verr.Kind().String() == "string" {
			return fmt.Sprintf("%s must be at most %s characters", field, verr.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, verr.Param())
	case "digits":
		return field + " must contain only digits"
	case "email":
		return "invalid email address"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, verr.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, verr.Param())
	default:
		return field + " is invalid"
	}
}
