package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/salesforce"
)

// PushOptions controls a campaign push.
type PushOptions struct {
	// Force re-pushes companies whose campaign phase already completed.
	Force bool
}

// Push hands scored companies to Salesforce as Accounts with their valid
// people as Contacts. Companies whose scoring phase has not completed are
// skipped, as are already-pushed companies unless opts.Force is set.
// Existing accounts (matched on website) and their existing contacts are
// updated, the rest inserted; one page of companies is one collection call.
func (r *Runner) Push(ctx context.Context, sf salesforce.Client, opts PushOptions) (*BatchResult, error) {
	res := r.newResult(model.PhaseCampaign)
	start := time.Now()
	defer func() {
		res.Duration = time.Since(start)
		logDone(res)
	}()

	list := r.companies(ctx, model.StatusValid)
	after := ""
	seen := 0
	for {
		if err := ctx.Err(); err != nil {
			return res, eris.Wrap(err, "pipeline: interrupted")
		}
		size := defaultPageSize
		if r.cfg.Limit > 0 {
			if seen >= r.cfg.Limit {
				return res, nil
			}
			size = min(size, r.cfg.Limit-seen)
		}

		page, err := list(after, size)
		if err != nil {
			return res, err
		}
		if len(page) == 0 {
			return res, nil
		}
		if err := r.pushPage(ctx, sf, page, opts, res); err != nil {
			return res, err
		}

		seen += len(page)
		after = page[len(page)-1].ID
		if len(page) < size {
			return res, nil
		}
	}
}

func (r *Runner) pushPage(ctx context.Context, sf salesforce.Client, page []model.Company, opts PushOptions, res *BatchResult) error {
	var staged []model.Company
	for _, c := range page {
		if !opts.Force {
			st, err := r.tracker.Status(ctx, c.ID, model.PhaseCampaign)
			if err != nil {
				res.record(c.ID, "", err)
				continue
			}
			if st == model.PhaseComplete {
				res.record(c.ID, "", errSkip)
				continue
			}
		}
		if err := enter(ctx, r.tracker, c.ID, model.PhaseCampaign); err != nil {
			res.record(c.ID, "", err)
			continue
		}
		staged = append(staged, c)
	}
	if len(staged) == 0 {
		return nil
	}

	fail := func(c model.Company, err error) {
		res.record(c.ID, "", abandon(ctx, r.tracker, c.ID, model.PhaseCampaign, err))
	}

	websites := make([]string, 0, len(staged))
	for _, c := range staged {
		if c.Website != "" {
			websites = append(websites, c.Website)
		}
	}
	existing, err := salesforce.FindAccountsByWebsite(ctx, sf, websites)
	if err != nil {
		for _, c := range staged {
			fail(c, err)
		}
		return nil
	}

	accountIDs, errs := r.upsertAccounts(ctx, sf, staged, existing)
	for i, c := range staged {
		if errs[i] != nil {
			fail(c, errs[i])
		}
	}

	var known []string
	for i, c := range staged {
		if errs[i] == nil && c.Website != "" {
			if _, ok := existing[strings.ToLower(c.Website)]; ok {
				known = append(known, accountIDs[i])
			}
		}
	}
	contacts, err := salesforce.FindContactsByAccount(ctx, sf, known)
	if err != nil {
		for i, c := range staged {
			if errs[i] == nil {
				fail(c, err)
			}
		}
		return nil
	}

	contactErrs := r.syncContacts(ctx, sf, staged, accountIDs, errs, contacts)
	for i, c := range staged {
		if errs[i] != nil {
			continue
		}
		if contactErrs[i] != nil {
			fail(c, contactErrs[i])
			continue
		}
		r.audit(ctx, model.KindCompany, c.ID, "pushed", nil, map[string]string{"salesforce_account_id": accountIDs[i]})
		res.record(c.ID, "pushed", r.tracker.Complete(ctx, c.ID, model.PhaseCampaign))
	}
	return nil
}

// upsertAccounts returns the account id and error for each company, by
// position.
func (r *Runner) upsertAccounts(ctx context.Context, sf salesforce.Client, staged []model.Company, existing map[string]string) ([]string, []error) {
	ids := make([]string, len(staged))
	errs := make([]error, len(staged))

	var inserts []map[string]any
	var insertIdx []int
	var updates []salesforce.CollectionRecord
	var updateIdx []int
	for i, c := range staged {
		fields := accountFields(c)
		if id, ok := existing[strings.ToLower(c.Website)]; ok && c.Website != "" {
			ids[i] = id
			updates = append(updates, salesforce.CollectionRecord{ID: id, Fields: fields})
			updateIdx = append(updateIdx, i)
			continue
		}
		inserts = append(inserts, fields)
		insertIdx = append(insertIdx, i)
	}

	apply := func(results []salesforce.CollectionResult, err error, idx []int, insert bool) {
		failed := salesforce.FailedResults(results)
		for k, i := range idx {
			switch {
			case k >= len(results):
				errs[i] = notSent(err, "account")
			case failed[k] != "":
				errs[i] = eris.Errorf("salesforce rejected account: %s", failed[k])
			case insert:
				ids[i] = results[k].ID
			}
		}
	}

	results, err := salesforce.InsertAll(ctx, sf, "Account", inserts)
	apply(results, err, insertIdx, true)
	results, err = salesforce.UpdateAll(ctx, sf, "Account", updates)
	apply(results, err, updateIdx, false)
	return ids, errs
}

// syncContacts writes the valid people of every pushed company as
// Contacts, updating those already present under the account and inserting
// the rest. It returns a per-company error.
func (r *Runner) syncContacts(ctx context.Context, sf salesforce.Client, staged []model.Company, accountIDs []string, accountErrs []error, existing map[string]string) []error {
	errs := make([]error, len(staged))

	var inserts []map[string]any
	var insertOwner []int
	var updates []salesforce.CollectionRecord
	var updateOwner []int
	for i, c := range staged {
		if accountErrs[i] != nil {
			continue
		}
		people, err := r.store.ListPeople(ctx, store.PersonFilter{CompanyID: c.ID, Status: model.StatusValid})
		if err != nil {
			errs[i] = err
			continue
		}
		for _, p := range people {
			fields := contactFields(p, accountIDs[i])
			if id, ok := existing[salesforce.ContactKey(accountIDs[i], p.Email, p.FirstName, p.LastName)]; ok {
				updates = append(updates, salesforce.CollectionRecord{ID: id, Fields: fields})
				updateOwner = append(updateOwner, i)
				continue
			}
			inserts = append(inserts, fields)
			insertOwner = append(insertOwner, i)
		}
	}

	apply := func(results []salesforce.CollectionResult, err error, owner []int) {
		failed := salesforce.FailedResults(results)
		for k, i := range owner {
			if errs[i] != nil {
				continue
			}
			switch {
			case k >= len(results):
				errs[i] = notSent(err, "contacts")
			case failed[k] != "":
				errs[i] = eris.Errorf("salesforce rejected contact: %s", failed[k])
			}
		}
	}

	results, err := salesforce.InsertAll(ctx, sf, "Contact", inserts)
	apply(results, err, insertOwner)
	results, err = salesforce.UpdateAll(ctx, sf, "Contact", updates)
	apply(results, err, updateOwner)
	return errs
}

// notSent explains a record missing from a partial collection response.
func notSent(err error, what string) error {
	if err != nil {
		return eris.Wrapf(err, "%s not sent", what)
	}
	return eris.Errorf("%s not sent", what)
}

func accountFields(c model.Company) map[string]any {
	fields := map[string]any{
		"Name":          c.Name,
		"AccountNumber": c.ID,
	}
	setIf(fields, "Website", c.Website)
	setIf(fields, "Phone", c.Phone)
	setIf(fields, "Industry", c.Industry)
	if c.EmployeeCount != nil {
		fields["NumberOfEmployees"] = *c.EmployeeCount
	}
	return fields
}

func contactFields(p model.Person, accountID string) map[string]any {
	fields := map[string]any{
		"AccountId": accountID,
		"FirstName": p.FirstName,
		"LastName":  p.LastName,
	}
	setIf(fields, "Title", p.Title)
	setIf(fields, "Email", p.Email)
	setIf(fields, "Phone", p.Phone)
	return fields
}

func setIf(m map[string]any, key, val string) {
	if val != "" {
		m[key] = val
	}
}
