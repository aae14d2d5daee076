package access

import (
	"errors"
	"log"

	"github.com/orneryd/nornicrdf/pkg/audit"
	"github.com/orneryd/nornicrdf/pkg/rdf"
)

// Audited wraps ctl so every denied check is written to trail. Granted checks
// are not recorded; iteration checks on every step and would flood the trail.
func Audited(ctl Controller, principal string, trail *audit.Logger) Controller {
	return &auditedController{ctl: ctl, principal: principal, trail: trail}
}

type auditedController struct {
	ctl       Controller
	principal string
	trail     *audit.Logger
}

func (a *auditedController) CheckRead(name rdf.IRI) error {
	err := a.ctl.CheckRead(name)
	a.record(name, PermRead, err)
	return err
}

func (a *auditedController) CheckReadWrite(name rdf.IRI) error {
	err := a.ctl.CheckReadWrite(name)
	a.record(name, PermWrite, err)
	return err
}

func (a *auditedController) record(name rdf.IRI, perm Permission, err error) {
	if err == nil {
		return
	}
	var denied *DeniedError
	if errors.As(err, &denied) {
		perm = denied.Permission
	}
	if logErr := a.trail.LogAccessDenied(a.principal, string(name), string(perm), err.Error()); logErr != nil {
		log.Printf("audit: %v", logErr)
	}
}
