package checkout

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Papel-hub/talentoStore/models"
	"github.com/Papel-hub/talentoStore/utils"
)

// ValidationError names the first input field that failed a check.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

// CustomerInput is the identification step as submitted by the shopper.
type CustomerInput struct {
	Name       string            `json:"name"`
	Email      string            `json:"email"`
	TaxID      string            `json:"taxId"`
	Phone      string            `json:"phone"`
	PersonType models.PersonType `json:"personType"`
}

// ValidateCustomer checks the identification fields and returns the
// normalized customer: trimmed name, lower-cased email, digit-only phone
// and tax id.
func ValidateCustomer(in CustomerInput) (models.Customer, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Customer{}, invalid("name", "is required")
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	if !validEmail(email) {
		return models.Customer{}, invalid("email", "must contain a single @ with text on both sides")
	}

	phone := utils.Digits(in.Phone)
	if len(phone) < 10 {
		return models.Customer{}, invalid("phone", "must have at least 10 digits")
	}

	taxID := utils.Digits(in.TaxID)
	personType := normalizePersonType(in.PersonType)
	switch personType {
	case models.PersonIndividual:
		if taxID == "" {
			return models.Customer{}, invalid("taxId", "is required for individuals")
		}
		if !ValidTaxID(taxID) {
			return models.Customer{}, invalid("taxId", "check digits do not match")
		}
	case models.PersonBusiness:
	default:
		return models.Customer{}, invalid("personType", "must be individual or business")
	}

	return models.Customer{
		Name:       name,
		Email:      email,
		TaxID:      taxID,
		Phone:      phone,
		PersonType: personType,
	}, nil
}

// normalizePersonType also accepts the storefront's Portuguese labels.
func normalizePersonType(t models.PersonType) models.PersonType {
	switch strings.ToLower(strings.TrimSpace(string(t))) {
	case "individual", "fisica", "física":
		return models.PersonIndividual
	case "business", "juridica", "jurídica":
		return models.PersonBusiness
	}
	return t
}

func validEmail(s string) bool {
	if strings.Count(s, "@") != 1 || strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	at := strings.IndexByte(s, '@')
	return at > 0 && at < len(s)-1
}

// UnmarshalJSON also reads the field names the storefront's checkout page
// posts (nome, cpf, celular, tipoPessoa).
func (in *CustomerInput) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name       string `json:"name"`
		Nome       string `json:"nome"`
		Email      string `json:"email"`
		TaxID      string `json:"taxId"`
		CPF        string `json:"cpf"`
		Phone      string `json:"phone"`
		Celular    string `json:"celular"`
		PersonType string `json:"personType"`
		TipoPessoa string `json:"tipoPessoa"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*in = CustomerInput{
		Name:       firstNonEmpty(raw.Name, raw.Nome),
		Email:      raw.Email,
		TaxID:      firstNonEmpty(raw.TaxID, raw.CPF),
		Phone:      firstNonEmpty(raw.Phone, raw.Celular),
		PersonType: models.PersonType(firstNonEmpty(raw.PersonType, raw.TipoPessoa)),
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
