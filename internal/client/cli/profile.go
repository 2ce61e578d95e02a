package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/storefront-auth/internal/client/models"
	"github.com/dmitrijs2005/storefront-auth/internal/common"
)

func (a *App) WhoAmI(ctx context.Context) error {
	s := a.sessions.CurrentSession()
	if s == nil {
		return a.printErr(common.ErrNotAuthenticated)
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Subject\t%s\n", s.SubjectID)
	fmt.Fprintf(w, "Email\t%s\n", s.Email)
	if exp := s.Expiry(); !exp.IsZero() {
		fmt.Fprintf(w, "Token expires\t%s\n", exp.Format("2006-01-02 15:04:05"))
	}

	if p := a.sessions.CurrentProfile(); p != nil {
		fmt.Fprintf(w, "Name\t%s\n", p.Name)
		fmt.Fprintf(w, "Phone\t%s\n", p.Phone)
		fmt.Fprintf(w, "Country\t%s\n", p.Country)
		fmt.Fprintf(w, "Role\t%s\n", p.Role)
		if len(p.Permissions) > 0 {
			fmt.Fprintf(w, "Permissions\t%s\n", strings.Join(p.Permissions, ", "))
		}
		fmt.Fprintf(w, "Joined\t%s\n", p.JoinedDate.Format("2006-01-02"))
	} else {
		fmt.Fprintf(w, "Profile\t(loading)\n")
	}
	return w.Flush()
}

func (a *App) Can(ctx context.Context, args []string) error {
	if a.sessions.HasPermission(args[0]) {
		fmt.Fprintln(a.out, "yes")
	} else {
		fmt.Fprintln(a.out, "no")
	}
	return nil
}

// Profile with no args shows the profile; "profile <field> <value...>"
// updates name, phone or country.
func (a *App) Profile(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return a.WhoAmI(ctx)
	}
	if len(args) < 2 {
		fmt.Fprintln(a.out, "Usage: profile [name|phone|country <value>]")
		return nil
	}

	value := strings.Join(args[1:], " ")
	var upd models.ProfileUpdate
	switch args[0] {
	case "name":
		upd.Name = &value
	case "phone":
		upd.Phone = &value
	case "country":
		upd.Country = &value
	default:
		fmt.Fprintln(a.out, "Unknown field:", args[0])
		return nil
	}

	if err := a.sessions.UpdateProfile(ctx, upd); err != nil {
		return a.printErr(err)
	}
	fmt.Fprintln(a.out, "Profile updated.")
	return nil
}
