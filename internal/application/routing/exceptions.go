package routing

import (
	"fmt"
	"strings"

	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/entity"
)

var actionHints = map[entity.ExceptionKind]string{
	entity.ExceptionMissingPO:            "Create or locate Purchase Order reference",
	entity.ExceptionVendorUnapproved:     "Submit vendor for approval or find alternative",
	entity.ExceptionDuplicateSuspected:   "Verify if duplicate or mark as valid",
	entity.ExceptionDuplicateInvoice:     "Confirm duplicate with vendor and void this copy",
	entity.ExceptionAmountMismatch:       "Reconcile amount difference with requester",
	entity.ExceptionPOMismatch:           "Reconcile invoice against the Purchase Order",
	entity.ExceptionMissingRequiredField: "Correct invoice data or request new invoice",
	entity.ExceptionAmountOutOfRange:     "Correct invoice data or request new invoice",
	entity.ExceptionInvalidDate:          "Correct invoice data or request new invoice",
	entity.ExceptionLookupUnavailable:    "Re-run validation once master data is reachable",
}

// ActionHint returns the suggested remediation for an exception kind
func ActionHint(kind entity.ExceptionKind) string {
	if hint, ok := actionHints[kind]; ok {
		return hint
	}
	return "Review invoice manually"
}

// TeamFor returns the team that handles an exception kind
func TeamFor(kind entity.ExceptionKind) string {
	switch kind {
	case entity.ExceptionMissingPO:
		return entity.TeamProcurement
	case entity.ExceptionVendorUnapproved:
		return entity.TeamVendorManagement
	default:
		return entity.TeamAccountsPayable
	}
}

func exceptionReason(validation *entity.ValidationResult) string {
	var b strings.Builder

	if failure, ok := validation.FirstFailure(); ok {
		fmt.Fprintf(&b, "Validation failed at %s: %s", failure.Name, failure.Message)
	} else {
		b.WriteString("Validation raised exceptions")
	}

	if len(validation.Exceptions) > 0 {
		kinds := make([]string, len(validation.Exceptions))
		for i, k := range validation.Exceptions {
			kinds[i] = string(k)
		}
		fmt.Fprintf(&b, " [%s]", strings.Join(kinds, ", "))

		primary, _ := validation.PrimaryException()
		fmt.Fprintf(&b, ". Action: %s", ActionHint(primary))
	}

	return b.String()
}
