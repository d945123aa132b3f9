package providers

import (
	"complywatch/internal/structures"
	"fmt"

	"github.com/gookit/validate"
)

type CnfValidator struct {
	conf *structures.Config
}

func (v *CnfValidator) Validate() error {
	val := validate.Struct(v.conf)
	if !val.Validate() {
		return val.Errors
	}

	if v.conf.Scan.ClaimWindow <= v.conf.Scan.DispatchTimeout {
		return fmt.Errorf("scan.claimWindow (%s) must be longer than scan.dispatchTimeout (%s)",
			v.conf.Scan.ClaimWindow, v.conf.Scan.DispatchTimeout)
	}
	if v.conf.Storage.Driver == "postgres" && v.conf.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn is required for the postgres driver")
	}
	if v.conf.Mail.Driver == "smtp" {
		if v.conf.Mail.Host == "" || v.conf.Mail.Port <= 0 || v.conf.Mail.From == "" {
			return fmt.Errorf("mail.host, mail.port and mail.from are required for the smtp driver")
		}
	}
	return nil
}

func NewCnfValidator(conf *structures.Config) *CnfValidator {
	return &CnfValidator{conf: conf}
}
