package validation

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/AshrafHassan95/invoice-automation-agent/internal/application/port"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/entity"
)

// amountEpsilon absorbs float rounding so a deviation of exactly the tolerance passes
const amountEpsilon = 1e-9

func withinTolerance(diff, allowed float64) bool {
	return math.Abs(diff) <= allowed+amountEpsilon
}

func (e *Evaluator) checkRequiredFields(inv *entity.InvoiceRecord) entity.CheckOutcome {
	var missing []string
	if strings.TrimSpace(inv.VendorName) == "" {
		missing = append(missing, "vendor_name")
	}
	if strings.TrimSpace(inv.InvoiceNumber) == "" {
		missing = append(missing, "invoice_number")
	}
	if inv.TotalAmount == 0 {
		missing = append(missing, "total_amount")
	}

	if len(missing) > 0 {
		return failed(entity.CheckRequiredFields,
			"missing required fields: "+strings.Join(missing, ", "),
			entity.ExceptionMissingRequiredField)
	}
	return passed(entity.CheckRequiredFields, "all required fields present")
}

func (e *Evaluator) checkAmount(inv *entity.InvoiceRecord) entity.CheckOutcome {
	var issues []string
	var kinds []entity.ExceptionKind

	if inv.TotalAmount < e.rules.MinAmount || inv.TotalAmount > e.rules.MaxAmount {
		issues = append(issues, fmt.Sprintf("total %.2f outside allowed range [%.2f, %.2f]",
			inv.TotalAmount, e.rules.MinAmount, e.rules.MaxAmount))
		kinds = append(kinds, entity.ExceptionAmountOutOfRange)
	}

	if inv.HasBreakdown() {
		expected := *inv.Subtotal + *inv.TaxAmount
		diff := expected - inv.TotalAmount
		allowed := e.rules.Tolerance(inv.TotalAmount)
		if !withinTolerance(diff, allowed) {
			issues = append(issues, fmt.Sprintf("subtotal + tax (%.2f) differs from total (%.2f) by %.2f, tolerance %.2f",
				expected, inv.TotalAmount, math.Abs(diff), allowed))
			kinds = append(kinds, entity.ExceptionAmountMismatch)
		}
	}

	if len(issues) > 0 {
		return failed(entity.CheckAmount, strings.Join(issues, "; "), kinds...)
	}
	return passed(entity.CheckAmount, fmt.Sprintf("total %.2f within limits", inv.TotalAmount))
}

func (e *Evaluator) checkDates(inv *entity.InvoiceRecord, today entity.Date) entity.CheckOutcome {
	if inv.InvoiceDate.IsZero() {
		return failed(entity.CheckDate, "invoice date is missing", entity.ExceptionInvalidDate)
	}

	var issues []string
	if inv.InvoiceDate.After(today.Time) {
		issues = append(issues, fmt.Sprintf("invoice date %s is in the future", inv.InvoiceDate))
	} else if age := inv.InvoiceDate.DaysUntil(today); age > e.rules.MaxInvoiceAgeDays {
		issues = append(issues, fmt.Sprintf("invoice is %d days old, limit is %d", age, e.rules.MaxInvoiceAgeDays))
	}

	if inv.DueDate != nil && !inv.DueDate.IsZero() && inv.DueDate.Before(inv.InvoiceDate.Time) {
		issues = append(issues, fmt.Sprintf("due date %s is before invoice date %s", inv.DueDate, inv.InvoiceDate))
	}

	if len(issues) > 0 {
		return failed(entity.CheckDate, strings.Join(issues, "; "), entity.ExceptionInvalidDate)
	}
	return passed(entity.CheckDate, fmt.Sprintf("invoice date %s is valid", inv.InvoiceDate))
}

func (e *Evaluator) checkVendor(ctx context.Context, inv *entity.InvoiceRecord, lookup port.Lookup) entity.CheckOutcome {
	name := strings.TrimSpace(inv.VendorName)
	if name == "" {
		return failed(entity.CheckVendor, "vendor name missing, cannot verify vendor", entity.ExceptionVendorUnapproved)
	}

	vendor, err := lookup.FindVendor(ctx, name)
	if err != nil {
		return e.lookupFailed(entity.CheckVendor, "vendor", inv, err)
	}

	switch {
	case vendor == nil:
		return failed(entity.CheckVendor, fmt.Sprintf("vendor %q not found in vendor master", name), entity.ExceptionVendorUnapproved)
	case !vendor.Active:
		return failed(entity.CheckVendor, fmt.Sprintf("vendor %q is inactive", vendor.Name), entity.ExceptionVendorUnapproved)
	case !vendor.Approved:
		return failed(entity.CheckVendor, fmt.Sprintf("vendor %q is not approved", vendor.Name), entity.ExceptionVendorUnapproved)
	}
	return passed(entity.CheckVendor, fmt.Sprintf("vendor %q is active and approved", vendor.Name))
}

func (e *Evaluator) checkDuplicates(ctx context.Context, inv *entity.InvoiceRecord, lookup port.Lookup) entity.CheckOutcome {
	vendor := strings.TrimSpace(inv.VendorName)
	if vendor == "" {
		return passed(entity.CheckDuplicate, "duplicate check skipped: vendor name missing")
	}
	number := strings.TrimSpace(inv.InvoiceNumber)

	if number != "" {
		matches, err := lookup.FindInvoicesByNumber(ctx, vendor, number)
		if err != nil {
			return e.lookupFailed(entity.CheckDuplicate, "invoice history", inv, err)
		}
		for _, prior := range matches {
			if prior.ID == inv.ID {
				continue
			}
			return failed(entity.CheckDuplicate,
				fmt.Sprintf("invoice %s from %s already exists as %s", number, vendor, prior.ID),
				entity.ExceptionDuplicateInvoice)
		}
	}

	recent, err := lookup.FindRecentInvoices(ctx, vendor, e.rules.DuplicateWindowDays)
	if err != nil {
		return e.lookupFailed(entity.CheckDuplicate, "invoice history", inv, err)
	}
	allowed := e.rules.Tolerance(inv.TotalAmount)
	for _, prior := range recent {
		if prior.ID == inv.ID || strings.EqualFold(strings.TrimSpace(prior.InvoiceNumber), number) {
			continue
		}
		if withinTolerance(prior.TotalAmount-inv.TotalAmount, allowed) {
			return warning(entity.CheckDuplicate,
				fmt.Sprintf("possible duplicate of invoice %s (%.2f) within %d days",
					prior.InvoiceNumber, prior.TotalAmount, e.rules.DuplicateWindowDays),
				entity.ExceptionDuplicateSuspected)
		}
	}

	return passed(entity.CheckDuplicate, "no duplicates found")
}

func (e *Evaluator) checkPurchaseOrder(ctx context.Context, inv *entity.InvoiceRecord, lookup port.Lookup) entity.CheckOutcome {
	if !inv.HasPO() {
		if e.rules.RequirePOForAutoApproval {
			return warning(entity.CheckPurchaseOrder, "no PO referenced; a PO is required for auto-approval", entity.ExceptionMissingPO)
		}
		return passed(entity.CheckPurchaseOrder, "no PO referenced")
	}

	number := strings.TrimSpace(inv.PONumber)
	po, err := lookup.FindPO(ctx, number)
	if err != nil {
		return e.lookupFailed(entity.CheckPurchaseOrder, "purchase order", inv, err)
	}

	switch {
	case po == nil:
		return failed(entity.CheckPurchaseOrder, fmt.Sprintf("PO %s not found", number), entity.ExceptionPOMismatch)
	case !entity.SameVendor(po.VendorName, inv.VendorName):
		return failed(entity.CheckPurchaseOrder,
			fmt.Sprintf("PO %s belongs to %q, not %q", number, po.VendorName, inv.VendorName), entity.ExceptionPOMismatch)
	case !po.IsOpen():
		return failed(entity.CheckPurchaseOrder,
			fmt.Sprintf("PO %s is not open (status %s, remaining %.2f)", number, po.Status, po.Remaining()), entity.ExceptionPOMismatch)
	}

	remaining := po.Remaining()
	allowed := e.rules.Tolerance(remaining)
	if !withinTolerance(inv.TotalAmount-remaining, allowed) {
		return failed(entity.CheckPurchaseOrder,
			fmt.Sprintf("invoice total %.2f differs from PO %s remaining %.2f by more than %.2f",
				inv.TotalAmount, number, remaining, allowed),
			entity.ExceptionPOMismatch)
	}

	return passed(entity.CheckPurchaseOrder, fmt.Sprintf("matched to PO %s (remaining %.2f)", number, remaining))
}
