package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/edumarket/internal/client/cart"
	"github.com/dmitrijs2005/edumarket/internal/client/models"
	"github.com/dmitrijs2005/edumarket/internal/client/services"
	"github.com/dmitrijs2005/edumarket/internal/common"
)

func (a *App) getStatus() string {
	st := a.session.Snapshot()
	if !st.IsLoggedIn() {
		return fmt.Sprintf("(guest cart:%d)", st.CartCount)
	}
	name := st.Claims.Username
	if name == "" {
		name = "user " + st.UserID()
	}
	role := "student"
	if st.IsTeacher() {
		role = "teacher"
	}
	return fmt.Sprintf("(%s %s cart:%d)", name, role, st.CartCount)
}

func (a *App) fail(err error) error {
	printlnFn("Error:", err.Error())
	return err
}

// Login prompts for credentials and authenticates.
func (a *App) Login(ctx context.Context) error {
	a.nav.Navigate(common.LoginRoute)

	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword("Enter password", a.out)
	if err != nil {
		return err
	}

	var form models.LoginForm
	if err := models.Apply(&form,
		models.FieldValue{Field: models.FieldEmail, Value: email},
		models.FieldValue{Field: models.FieldPassword, Value: password},
	); err != nil {
		return a.fail(err)
	}

	claims, err := a.auth.Login(ctx, form)
	if err != nil {
		return a.fail(err)
	}
	a.nav.Navigate(common.HomeRoute)
	printlnFn(fmt.Sprintf("Logged in as user %s", claims.UserID))

	if _, err := a.auth.FetchProfile(ctx); err != nil {
		a.log.Warn(ctx, "profile not loaded", "error", err)
	}
	return nil
}

// Register prompts for the registration form, creates the account and logs in.
func (a *App) Register(ctx context.Context) error {
	fullName, err := getSimpleText(a.reader, "Enter full name", a.out)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword("Enter password", a.out)
	if err != nil {
		return err
	}
	password2, err := getPassword("Repeat password", a.out)
	if err != nil {
		return err
	}

	var form models.RegisterForm
	if err := models.Apply(&form,
		models.FieldValue{Field: models.FieldFullName, Value: fullName},
		models.FieldValue{Field: models.FieldEmail, Value: email},
		models.FieldValue{Field: models.FieldPassword, Value: password},
		models.FieldValue{Field: models.FieldPassword2, Value: password2},
	); err != nil {
		return a.fail(err)
	}

	claims, err := a.auth.Register(ctx, form)
	if err != nil {
		return a.fail(err)
	}
	a.nav.Navigate(common.HomeRoute)
	printlnFn(fmt.Sprintf("Registered and logged in as user %s", claims.UserID))
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	a.auth.Logout(ctx, services.MsgLoggedOut)
	a.nav.Navigate(common.LoginRoute)
	return nil
}

// WhoAmI prints the current session.
func (a *App) WhoAmI(ctx context.Context) error {
	st := a.session.Snapshot()
	if !st.IsLoggedIn() {
		printlnFn("Not logged in")
		return nil
	}

	c := st.Claims
	printlnFn("User ID:  ", c.UserID.String())
	if c.Username != "" {
		printlnFn("Username: ", c.Username)
	}
	if c.Email != "" {
		printlnFn("Email:    ", c.Email)
	}
	printlnFn("Teacher:  ", st.IsTeacher())
	if st.Profile != nil {
		printlnFn("Name:     ", st.Profile.FullName)
	}
	printlnFn("Cart:     ", st.CartCount)
	return nil
}

// Profile reloads the profile from the backend and prints it.
func (a *App) Profile(ctx context.Context) error {
	p, err := a.auth.FetchProfile(ctx)
	if err != nil {
		if errors.Is(err, common.ErrNoSession) {
			printlnFn("Not logged in")
			return err
		}
		return a.fail(err)
	}

	printlnFn("Full name:", p.FullName)
	if p.Country != nil {
		printlnFn("Country:  ", *p.Country)
	}
	if p.About != nil {
		printlnFn("About:    ", *p.About)
	}
	if p.Date != "" {
		printlnFn("Joined:   ", p.Date)
	}
	return nil
}

// Cart prints the active cart id and item count.
func (a *App) Cart(ctx context.Context) error {
	id, err := a.resolver.Resolve(ctx)
	if err != nil {
		return a.fail(err)
	}
	printlnFn("Cart ID:", id)
	printlnFn("Items:  ", a.session.Snapshot().CartCount)
	return nil
}

// CartSync refreshes the cart count on demand.
func (a *App) CartSync(ctx context.Context) error {
	n, err := a.syncer.ManualSync(ctx)
	if err != nil {
		if errors.Is(err, cart.ErrThrottled) {
			printlnFn("Cart was synced a moment ago, try again shortly")
			return err
		}
		return a.fail(err)
	}
	printlnFn("Items in cart:", n)
	return nil
}

// CartRepair fixes an unusable stored cart id.
func (a *App) CartRepair(ctx context.Context) error {
	res, err := a.syncer.Repair(ctx)
	if err != nil {
		return a.fail(err)
	}
	if res.Removed {
		printlnFn("Removed an invalid cart id")
	}
	if res.Regenerated {
		printlnFn("Cart id derived again")
	}
	printlnFn("Cart ID:", res.CartID)
	printlnFn("Items:  ", res.Count)
	return nil
}

// Storage handles "storage [info|check|cleanup|clear]".
func (a *App) Storage(ctx context.Context, args []string) error {
	sub := "info"
	if len(args) > 0 {
		sub = args[0]
	}

	a.foreground.Store(true)
	defer a.foreground.Store(false)

	switch sub {
	case "info":
		u := a.monitor.Info(ctx)
		if u.Quota == 0 {
			printlnFn("Storage quota is not configured")
			return nil
		}
		printlnFn(fmt.Sprintf("Used %d of %d bytes (%.1f%%)", u.Used, u.Quota, u.Percent()))
		return nil

	case "check":
		if err := a.monitor.Check(ctx); err != nil {
			return a.fail(err)
		}
		printlnFn("Storage is healthy")
		return nil

	case "cleanup":
		if err := a.store.Cleanup(ctx); err != nil {
			return a.fail(err)
		}
		printlnFn("Cached data removed")
		return nil

	case "clear":
		if !a.confirm(ctx, "This removes all locally stored data. Continue?") {
			printlnFn("Cancelled")
			return nil
		}
		if err := a.store.ClearAll(ctx); err != nil {
			return a.fail(err)
		}
		a.reload(ctx)
		printlnFn("Local storage cleared")
		return nil
	}

	printlnFn("Usage: storage [info|check|cleanup|clear]")
	return nil
}

// Country handles "country <lat> <lon>".
func (a *App) Country(ctx context.Context, args []string) error {
	if len(args) != 2 {
		printlnFn("Usage: country <lat> <lon>")
		return nil
	}
	lat, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return a.fail(fmt.Errorf("bad latitude %q", args[0]))
	}
	lon, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return a.fail(fmt.Errorf("bad longitude %q", args[1]))
	}

	printlnFn("Tax country:", a.geo.Country(ctx, lat, lon))
	return nil
}
