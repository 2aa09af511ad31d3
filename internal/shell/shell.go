// Package shell is the interactive terminal front-end of the storefront. It
// holds the cart for the lifetime of the process.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/munchify/internal/domain/account"
	"github.com/xenking/munchify/internal/domain/checkout"
	"github.com/xenking/munchify/internal/domain/history"
	"github.com/xenking/munchify/internal/domain/order"
	"github.com/xenking/munchify/internal/domain/promo"
	"github.com/xenking/munchify/internal/failure"
	"github.com/xenking/munchify/internal/storefront"
)

// Prompt is printed before every command.
const Prompt = "munch> "

type command struct {
	usage string
	help  string
	run   func(ctx context.Context, args []string) error
}

// Shell reads commands line by line and renders the results as plain text.
type Shell struct {
	store    *storefront.Store
	out      io.Writer
	commands map[string]command
	quit     bool
}

// New creates a Shell over store writing to out.
func New(store *storefront.Store, out io.Writer) *Shell {
	s := &Shell{store: store, out: out}
	s.commands = map[string]command{
		"help":     {"help", "show this help", s.help},
		"menu":     {"menu [category]", "list the menu", s.menu},
		"add":      {"add <id>", "add one unit to the cart", s.add},
		"remove":   {"remove <id>", "remove one unit from the cart", s.remove},
		"cart":     {"cart", "show the cart and totals", s.cart},
		"clear":    {"clear", "empty the cart", s.clear},
		"promo":    {"promo <code>|clear", "apply or detach a promo code", s.promo},
		"set":      {"set <field> <value>", "fill a delivery field", s.set},
		"form":     {"form", "show the delivery form", s.form},
		"checkout": {"checkout", "place the order", s.checkout},
		"login":    {"login <email> <password>", "log in", s.login},
		"signup":   {"signup <username> <email> <password>", "create an account", s.signup},
		"logout":   {"logout", "log out", s.logout},
		"whoami":   {"whoami", "show the logged-in user", s.whoami},
		"orders":   {"orders", "show past orders", s.orders},
		"account":  {"account username <name> | password <new> <confirm> | delete", "manage the account", s.account},
		"quit":     {"quit", "exit", s.exit},
	}
	return s
}

// Run reads commands from in until EOF, "quit" or ctx cancellation. Command
// failures are printed and never end the session.
func (s *Shell) Run(ctx context.Context, in io.Reader) error {
	lg := zctx.From(ctx)
	s.store.Start(ctx)

	sc := bufio.NewScanner(in)
	s.printf("%s", Prompt)
	for !s.quit && sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Exec(ctx, sc.Text()); err != nil {
			lg.Debug("Command failed", zap.Error(err))
			s.printf("error: %s\n", failure.Message(err))
		}
		if !s.quit {
			s.printf("%s", Prompt)
		}
	}
	if err := sc.Err(); err != nil {
		return errors.Wrap(err, "read input")
	}
	return nil
}

// Exec runs a single command line.
func (s *Shell) Exec(ctx context.Context, line string) error {
	args := strings.Fields(line)
	if len(args) == 0 {
		return nil
	}
	cmd, ok := s.commands[strings.ToLower(args[0])]
	if !ok {
		s.printf("unknown command %q, type \"help\"\n", args[0])
		return nil
	}
	return cmd.run(ctx, args[1:])
}

func (s *Shell) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.out, format, args...)
}

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

func (s *Shell) usage(name string) error {
	s.printf("usage: %s\n", s.commands[name].usage)
	return nil
}

func (s *Shell) help(context.Context, []string) error {
	names := make([]string, 0, len(s.commands))
	for n := range s.commands {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		c := s.commands[n]
		s.printf("  %-40s %s\n", c.usage, c.help)
	}
	return nil
}

func (s *Shell) menu(_ context.Context, args []string) error {
	cat := s.store.Catalog()
	items := cat.Category(strings.Join(args, " "))
	if len(items) == 0 {
		s.printf("no items; categories: %s\n", strings.Join(cat.Categories(), ", "))
		return nil
	}
	for _, it := range items {
		s.printf("  [%s] %-28s %8s  %s\n", it.ID, it.Name, money(it.Price), it.Category)
	}
	return nil
}

func (s *Shell) add(_ context.Context, args []string) error {
	if len(args) != 1 {
		return s.usage("add")
	}
	it, ok := s.store.Catalog().Lookup(args[0])
	if !ok {
		s.printf("no item %q on the menu\n", args[0])
		return nil
	}
	c := s.store.Cart()
	c.Add(it.ID)
	s.printf("%s x%d (cart: %d)\n", it.Name, c.Quantity(it.ID), c.Count())
	return nil
}

func (s *Shell) remove(_ context.Context, args []string) error {
	if len(args) != 1 {
		return s.usage("remove")
	}
	c := s.store.Cart()
	c.Remove(args[0])
	s.printf("cart: %d\n", c.Count())
	return nil
}

func (s *Shell) cart(context.Context, []string) error {
	c := s.store.Cart()
	if c.Empty() {
		s.printf("Your cart is empty.\n")
		return nil
	}
	for _, l := range c.Lines() {
		name := checkout.UnknownItemName
		price := decimal.Zero
		if it, ok := s.store.Catalog().Lookup(l.ItemID); ok {
			name, price = it.Name, it.Price
		}
		s.printf("  [%s] %-28s %3d x %8s = %8s\n",
			l.ItemID, name, l.Quantity, money(price), money(price.Mul(decimal.NewFromInt(int64(l.Quantity)))))
	}
	s.quote(s.store.Checkout().Quote())
	return nil
}

func (s *Shell) quote(q checkout.Quote) {
	s.printf("  Subtotal       %10s\n", money(q.Subtotal))
	s.printf("  Delivery Fee   %10s\n", money(q.DeliveryFee))
	if q.PromoCode != "" {
		if q.PromoErr != nil {
			s.printf("  Promo %-8s (not applied: %s)\n", q.PromoCode, q.PromoErr)
		} else {
			s.printf("  Promo %-8s -%9s  %s\n", q.PromoCode, money(q.Discount), q.PromoDescription)
		}
	}
	s.printf("  Total          %10s\n", money(q.GrandTotal))
}

func (s *Shell) clear(context.Context, []string) error {
	s.store.Cart().Clear()
	s.printf("Cart cleared.\n")
	return nil
}

func (s *Shell) promo(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return s.usage("promo")
	}
	flow := s.store.Checkout()
	if strings.EqualFold(args[0], "clear") {
		flow.ClearPromo()
		s.printf("Promo code removed.\n")
		return nil
	}
	q, err := flow.ApplyPromo(ctx, args[0])
	if err != nil {
		if msg, ok := promoMessage(err); ok {
			s.printf("%s\n", msg)
			return nil
		}
		return err
	}
	s.printf("Promo %s applied.\n", q.PromoCode)
	s.quote(q)
	return nil
}

func promoMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, promo.ErrInvalidCode):
		return "Invalid promo code.", true
	case errors.Is(err, promo.ErrExpired):
		return "This promo code has expired.", true
	case errors.Is(err, promo.ErrUsageLimitReached):
		return "This promo code is no longer available.", true
	default:
		return "", false
	}
}

func (s *Shell) set(_ context.Context, args []string) error {
	if len(args) < 2 {
		return s.usage("set")
	}
	if err := s.store.Checkout().Form().Set(args[0], strings.Join(args[1:], " ")); err != nil {
		s.printf("%s\n", err)
	}
	return nil
}

func (s *Shell) form(context.Context, []string) error {
	f := s.store.Checkout().Form()
	for _, name := range checkout.Fields {
		s.printf("  %-10s %s\n", name, f.Get(name))
	}
	return nil
}

func (s *Shell) checkout(ctx context.Context, _ []string) error {
	r, err := s.store.Checkout().Submit(ctx)
	if err != nil {
		return err
	}
	s.printf("%s Order #%d, total %s.\n", r.Message, r.OrderID, money(r.Total))
	s.printf("Returning to %s in %s.\n", r.Redirect, r.RedirectAfter)
	return nil
}

func (s *Shell) login(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return s.usage("login")
	}
	name, err := s.store.Account().LogIn(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	s.printf("Welcome, %s!\n", name)
	return nil
}

func (s *Shell) signup(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return s.usage("signup")
	}
	msg, err := s.store.Account().SignUp(ctx, args[0], args[1], args[2])
	if err != nil {
		return err
	}
	s.printf("%s\n", msg)
	return nil
}

func (s *Shell) logout(context.Context, []string) error {
	if err := s.store.Account().LogOut(); err != nil {
		return err
	}
	s.printf("Logged out.\n")
	return nil
}

func (s *Shell) whoami(ctx context.Context, _ []string) error {
	name, err := s.store.Account().WhoAmI(ctx)
	if err != nil {
		return err
	}
	s.printf("%s\n", name)
	return nil
}

func (s *Shell) orders(ctx context.Context, _ []string) error {
	v := s.store.OpenHistory()
	snap := v.Load(ctx)
	RenderHistory(s.out, snap)
	return nil
}

// RenderHistory writes a history snapshot as plain text.
func RenderHistory(w io.Writer, snap history.Snapshot) {
	switch snap.Status {
	case history.StatusLoginRequired:
		_, _ = fmt.Fprintln(w, history.LoginRequiredMessage)
	case history.StatusFailed:
		_, _ = fmt.Fprintf(w, "error: %s\n", failure.Message(snap.Err))
	case history.StatusLoading:
		_, _ = fmt.Fprintln(w, "Loading...")
	default:
		if len(snap.Orders) == 0 {
			_, _ = fmt.Fprintln(w, history.NoOrdersMessage)
			return
		}
		for _, o := range snap.Orders {
			renderOrder(w, o)
		}
	}
}

func renderOrder(w io.Writer, o order.Order) {
	_, _ = fmt.Fprintf(w, "Order #%d  %s  %s\n", o.ID, o.CreatedAt.Local().Format("2006-01-02 15:04"), money(o.Total))
	for _, it := range o.Items {
		_, _ = fmt.Fprintf(w, "  %s x %d\n", it.Name, it.Quantity)
	}
	if o.PromoCode != "" {
		_, _ = fmt.Fprintf(w, "  promo %s -%s\n", o.PromoCode, money(o.Discount))
	}
	c := o.Contact
	_, _ = fmt.Fprintf(w, "  to %s %s, %s, %s\n", c.FirstName, c.LastName, c.Street, c.City)
}

func (s *Shell) account(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return s.usage("account")
	}
	svc := s.store.Account()

	var (
		msg string
		err error
	)
	switch {
	case args[0] == "username" && len(args) == 2:
		msg, err = svc.Update(ctx, account.Update{Username: args[1]})
	case args[0] == "password" && len(args) == 3:
		msg, err = svc.Update(ctx, account.Update{Password: args[1], ConfirmPassword: args[2]})
	case args[0] == "delete" && len(args) == 1:
		msg, err = svc.Delete(ctx)
	default:
		return s.usage("account")
	}
	if err != nil {
		return err
	}
	s.printf("%s\n", msg)
	return nil
}

func (s *Shell) exit(context.Context, []string) error {
	s.quit = true
	s.printf("Bye!\n")
	return nil
}
