package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Account is the subset of a Salesforce Account the push step reads back.
type Account struct {
	ID      string `json:"Id" salesforce:"Id"`
	Name    string `json:"Name" salesforce:"Name"`
	Website string `json:"Website" salesforce:"Website"`
}

// Contact is the subset of a Salesforce Contact the push step reads back.
type Contact struct {
	ID        string `json:"Id" salesforce:"Id"`
	AccountID string `json:"AccountId" salesforce:"AccountId"`
	FirstName string `json:"FirstName" salesforce:"FirstName"`
	LastName  string `json:"LastName" salesforce:"LastName"`
	Email     string `json:"Email" salesforce:"Email"`
}

// ContactKey identifies a contact within an account: by email when there
// is one, otherwise by full name. Case is ignored.
func ContactKey(accountID, email, firstName, lastName string) string {
	if email != "" {
		return accountID + "|" + strings.ToLower(email)
	}
	return accountID + "|" + strings.ToLower(strings.TrimSpace(firstName+" "+lastName))
}

// FindContactsByAccount returns the existing Contact IDs of the given
// accounts keyed by ContactKey.
func FindContactsByAccount(ctx context.Context, c Client, accountIDs []string) (map[string]string, error) {
	found := make(map[string]string)
	const chunk = 100
	for start := 0; start < len(accountIDs); start += chunk {
		end := min(start+chunk, len(accountIDs))

		quoted := make([]string, 0, end-start)
		for _, id := range accountIDs[start:end] {
			quoted = append(quoted, "'"+escapeSoql(id)+"'")
		}
		soql := fmt.Sprintf("SELECT Id, AccountId, FirstName, LastName, Email FROM Contact WHERE AccountId IN (%s)", strings.Join(quoted, ", "))

		var contacts []Contact
		if err := c.Query(ctx, soql, &contacts); err != nil {
			return nil, eris.Wrap(err, "sf: find contacts by account")
		}
		for _, ct := range contacts {
			found[ContactKey(ct.AccountID, ct.Email, ct.FirstName, ct.LastName)] = ct.ID
		}
	}
	return found, nil
}

// FindAccountsByWebsite returns existing Account IDs keyed by lowercased
// website. Websites are queried in chunks to stay under the SOQL length limit.
func FindAccountsByWebsite(ctx context.Context, c Client, websites []string) (map[string]string, error) {
	found := make(map[string]string)
	const chunk = 100
	for start := 0; start < len(websites); start += chunk {
		end := min(start+chunk, len(websites))

		quoted := make([]string, 0, end-start)
		for _, w := range websites[start:end] {
			quoted = append(quoted, "'"+escapeSoql(w)+"'")
		}
		soql := fmt.Sprintf("SELECT Id, Name, Website FROM Account WHERE Website IN (%s)", strings.Join(quoted, ", "))

		var accounts []Account
		if err := c.Query(ctx, soql, &accounts); err != nil {
			return nil, eris.Wrap(err, "sf: find accounts by website")
		}
		for _, a := range accounts {
			found[strings.ToLower(a.Website)] = a.ID
		}
	}
	return found, nil
}

// escapeSoql escapes single quotes in SOQL string literals to prevent injection.
func escapeSoql(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
