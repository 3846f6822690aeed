package authcore

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/nyaruka/phonenumbers"
)

var (
	passwordCharset = regexp.MustCompile(`^[A-Za-z0-9@$!%*?&]{8,20}$`)
	passwordLetter  = regexp.MustCompile(`[A-Za-z]`)
	passwordDigit   = regexp.MustCompile(`[0-9]`)
	passwordSpecial = regexp.MustCompile(`[@$!%*?&]`)
	accountNumber   = regexp.MustCompile(`^[0-9-]{9,30}$`)
	businessNumber  = regexp.MustCompile(`^[0-9]{10}$`)
	verifyCodeRule  = regexp.MustCompile(`^[0-9]+$`)
)

// validator checks request payloads before any side effect.
type validator struct {
	phoneRegion string
	cycles      []int
	codeDigits  int
}

func newValidator(cfg Config) validator {
	return validator{
		phoneRegion: strings.ToUpper(cfg.Registration.PhoneRegion),
		cycles:      slices.Clone(cfg.Registration.SettlementCycles),
		codeDigits:  cfg.Verification.CodeDigits,
	}
}

func invalid(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrRegistrationInvalid, err)
}

func (v validator) email(email string) error {
	return invalid(validation.Validate(email, validation.Required, validation.Length(3, 254), is.Email))
}

func (v validator) code(code string) error {
	return invalid(validation.Validate(code,
		validation.Required,
		validation.Length(v.codeDigits, v.codeDigits),
		validation.Match(verifyCodeRule),
	))
}

func (v validator) registration(r RegisterRequest) error {
	return invalid(validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, validation.Required, validation.By(passwordRule)),
		validation.Field(&r.Code, validation.Required, validation.Length(v.codeDigits, v.codeDigits), validation.Match(verifyCodeRule)),
		validation.Field(&r.Name, validation.Required, validation.Length(1, 50)),
		validation.Field(&r.Phone, validation.Required, validation.By(v.phoneRule)),
	))
}

func (v validator) hostRegistration(r HostRegisterRequest) error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, validation.Required, validation.By(passwordRule)),
		validation.Field(&r.Code, validation.Required, validation.Length(v.codeDigits, v.codeDigits), validation.Match(verifyCodeRule)),
		validation.Field(&r.Name, validation.Required, validation.Length(1, 50)),
		validation.Field(&r.Phone, validation.Required, validation.By(v.phoneRule)),
		validation.Field(&r.BusinessNumber, validation.Required, validation.By(businessNumberRule)),
		validation.Field(&r.BankName, validation.Required, validation.Length(1, 50)),
		validation.Field(&r.AccountNumber, validation.Required, validation.Match(accountNumber)),
	)
	if err != nil {
		return invalid(err)
	}
	if !slices.Contains(v.cycles, r.SettlementCycle) {
		return fmt.Errorf("%w: %d", ErrInvalidSettlementCycle, r.SettlementCycle)
	}
	return nil
}

func (v validator) socialName(name string) error {
	return invalid(validation.Validate(name, validation.Length(0, 50)))
}

func passwordRule(value interface{}) error {
	s, _ := value.(string)
	if !passwordCharset.MatchString(s) {
		return errors.New("must be 8-20 characters from letters, digits and @$!%*?&")
	}
	if !passwordLetter.MatchString(s) || !passwordDigit.MatchString(s) || !passwordSpecial.MatchString(s) {
		return errors.New("must contain a letter, a digit and a special character")
	}
	return nil
}

func (v validator) phoneRule(value interface{}) error {
	s, _ := value.(string)
	num, err := phonenumbers.Parse(s, v.phoneRegion)
	if err != nil {
		return errors.New("must be a valid phone number")
	}
	if !phonenumbers.IsValidNumberForRegion(num, v.phoneRegion) {
		return errors.New("must be a valid phone number")
	}
	if phonenumbers.GetNumberType(num) != phonenumbers.MOBILE {
		return errors.New("must be a mobile number")
	}
	return nil
}

func businessNumberRule(value interface{}) error {
	s, _ := value.(string)
	if !businessNumber.MatchString(normalizeBusinessNumber(s)) {
		return errors.New("must be 10 digits")
	}
	return nil
}

func normalizeBusinessNumber(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "-", ""))
}
