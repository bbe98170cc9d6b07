package realm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"lootledger/internal/actor"
	"lootledger/internal/docstore"
	"lootledger/internal/ledger"
	"lootledger/internal/persistence/tradelog"
	"lootledger/internal/policy"
	"lootledger/internal/protocol"
)

// Broadcaster is the fire-and-forget channel all peers observe. Addressed
// messages (errors) are filtered by the receiving peer, not routed here.
type Broadcaster interface {
	Broadcast(msg any)
}

// Processor executes intents against the document store. It is the only
// writer of actor records; callers serialize through the realm loop, so no
// locking happens here.
type Processor struct {
	store  docstore.Store
	table  *ledger.Table
	pol    policy.Policy
	exempt func(string) bool
	out    Broadcaster
	trades *tradelog.Writer
	log    *log.Logger
}

func NewProcessor(store docstore.Store, table *ledger.Table, pol policy.Policy, out Broadcaster, trades *tradelog.Writer, logger *log.Logger) *Processor {
	return &Processor{
		store:  store,
		table:  table,
		pol:    pol,
		exempt: pol.Exempt(),
		out:    out,
		trades: trades,
		log:    logger,
	}
}

// Table exposes the denomination table for ref parsing at the boundary.
func (p *Processor) Table() *ledger.Table { return p.table }

// ProcessIntent runs one intent to completion: validate, execute, notify.
// There is no pending state; a failed validation simply rejects the intent
// with an error envelope to the requester. requester is the submitting peer's
// session when connected, nil otherwise.
func (p *Processor) ProcessIntent(ctx context.Context, env protocol.IntentMsg, requester *Session) {
	detail, cost, err := p.execute(ctx, env, requester)
	code := errorCode(err)
	p.audit(env, cost, err, detail, code)
	if err == nil {
		return
	}
	switch code {
	case "":
		// Benign race (stack vanished, zero-quantity no-op): nothing to say.
	case protocol.ErrInsufficientFunds:
		p.errorTo(env.RequestingUserID, code, "not enough funds")
	case protocol.ErrInvalidItemType:
		p.errorTo(env.RequestingUserID, code, "that item cannot change hands")
	case protocol.ErrNoPermission:
		p.errorTo(env.RequestingUserID, code, "you are not allowed to do that")
	case protocol.ErrConversionFailed:
		// Should be unreachable past the purchasing-power pre-check; surface
		// loudly, never swallow.
		p.log.Printf("conversion failed processing %s from %s: %v", env.Kind, env.RequestingUserID, err)
		p.errorTo(env.RequestingUserID, code, "currency conversion failed")
	case protocol.ErrNotFound:
		p.errorTo(env.RequestingUserID, code, "the item or actor is gone")
	default:
		p.log.Printf("intent %s from %s failed: %v", env.Kind, env.RequestingUserID, err)
		p.errorTo(env.RequestingUserID, protocol.ErrInternal, "internal error")
	}
}

// errorCode maps an execution failure to its wire code. Silent failures map
// to the empty string.
func errorCode(err error) string {
	switch {
	case err == nil, errors.Is(err, errSilent):
		return ""
	case errors.Is(err, ErrInsufficientFunds):
		return protocol.ErrInsufficientFunds
	case errors.Is(err, actor.ErrInvalidItemType):
		return protocol.ErrInvalidItemType
	case errors.Is(err, ErrNoPermission):
		return protocol.ErrNoPermission
	case errors.Is(err, ledger.ErrConversionFailed):
		return protocol.ErrConversionFailed
	case errors.Is(err, actor.ErrNotFound), errors.Is(err, docstore.ErrNotExist):
		return protocol.ErrNotFound
	default:
		return protocol.ErrInternal
	}
}

// errSilent wraps failures that are ignored upward by design.
var errSilent = errors.New("silently ignored")

func silent(err error) error { return fmt.Errorf("%w: %w", errSilent, err) }

func (p *Processor) execute(ctx context.Context, env protocol.IntentMsg, requester *Session) (detail string, cost decimal.Decimal, err error) {
	switch env.Kind {
	case protocol.KindBuy:
		return p.buy(ctx, env, requester)
	case protocol.KindLoot:
		return p.loot(ctx, env, requester)
	case protocol.KindDrop:
		return p.drop(ctx, env, requester)
	case protocol.KindGive:
		return p.give(ctx, env, requester)
	}
	return "", decimal.Zero, fmt.Errorf("unknown kind %q", env.Kind)
}

// resolveTarget loads the counterpart record, through the scene token when
// one is given.
func (p *Processor) resolveTarget(ctx context.Context, env protocol.IntentMsg) (*actor.Actor, error) {
	if env.ContainerTokenID != "" {
		return p.store.GetByToken(ctx, env.ContainerTokenID)
	}
	if env.TargetActorID != "" {
		return p.store.Get(ctx, env.TargetActorID)
	}
	return nil, fmt.Errorf("intent names no target actor or token")
}

// controlsSource: a non-privileged requester may only transact as their own
// character, or as an actor they hold owner access on.
func controlsSource(requester *Session, userID string, src *actor.Actor) bool {
	if requester != nil && requester.GM {
		return true
	}
	if requester != nil && requester.CharacterID != "" && requester.CharacterID == src.ID {
		return true
	}
	return src.Level(userID) == actor.LevelOwner
}

// canUseContainer: interacting with a loot container requires owner access,
// explicit or by default, unless the requester is the authority.
func canUseContainer(requester *Session, userID string, c *actor.Actor) bool {
	if requester != nil && requester.GM {
		return true
	}
	return c.Level(userID) >= actor.LevelOwner
}

func (p *Processor) buy(ctx context.Context, env protocol.IntentMsg, requester *Session) (string, decimal.Decimal, error) {
	zero := decimal.Zero
	if env.Quantity <= 0 {
		return "zero quantity", zero, silent(errors.New("non-positive buy quantity"))
	}
	ref := protocol.ParseRef(env.ItemOrCurrencyID, p.table.Has)
	if ref.Kind != protocol.RefItem {
		return "", zero, fmt.Errorf("cannot buy currency %q", env.ItemOrCurrencyID)
	}
	seller, err := p.resolveTarget(ctx, env)
	if err != nil {
		return "", zero, err
	}
	// Same record on both sides of the trade: work on one copy so the debit
	// and the credit land in the same write.
	buyer := seller
	if env.SourceActorID != seller.ID {
		buyer, err = p.store.Get(ctx, env.SourceActorID)
		if err != nil {
			return "", zero, err
		}
	}
	if !controlsSource(requester, env.RequestingUserID, buyer) || !canUseContainer(requester, env.RequestingUserID, seller) {
		return "", zero, ErrNoPermission
	}
	stack := seller.Stack(ref.ID)
	if stack == nil {
		return "", zero, actor.ErrNotFound
	}
	qty := env.Quantity
	if qty > stack.Quantity {
		qty = stack.Quantity
	}

	unit := stack.DisplayPrice(false).Mul(seller.PriceModifier())
	total := unit.Mul(decimal.NewFromInt(qty))

	power := ledger.PurchasingPower(buyer.Funds, p.table)
	altPower := ledger.PurchasingPower(buyer.AltFunds, p.table)
	if total.GreaterThan(power.Add(altPower)) {
		return "", zero, ErrInsufficientFunds
	}

	// Primary purse first, the weightless purse only for the shortfall. Both
	// debits happen on private copies; nothing is persisted until the move
	// succeeded, so a failure here leaves both parties untouched.
	var funds, altFunds ledger.Funds
	if total.LessThanOrEqual(power) {
		funds, _, err = ledger.PayCost(total, buyer.Funds, p.table)
		if err != nil {
			return "", zero, err
		}
		altFunds = buyer.AltFunds
	} else {
		funds, _, err = ledger.PayCost(power, buyer.Funds, p.table)
		if err != nil {
			return "", zero, err
		}
		altFunds, _, err = ledger.PayCost(total.Sub(power), buyer.AltFunds, p.table)
		if err != nil {
			return "", zero, err
		}
	}
	buyer.Funds = funds
	buyer.AltFunds = altFunds

	moved, err := actor.MoveStack(seller, buyer, ref.ID, qty, p.pol.RemoveEmptyStacks, false)
	if err != nil {
		return "", zero, err
	}
	if err := p.store.Put(ctx, seller); err != nil {
		return "", zero, err
	}
	if err := p.store.Put(ctx, buyer); err != nil {
		return "", zero, err
	}
	p.notify(seller, fmt.Sprintf("%s buys %dx %s for %s.", buyer.Name, moved.Quantity, moved.DisplayName, total), moved.Stack)
	return fmt.Sprintf("bought %dx %s", moved.Quantity, moved.DisplayName), total, nil
}

func (p *Processor) loot(ctx context.Context, env protocol.IntentMsg, requester *Session) (string, decimal.Decimal, error) {
	zero := decimal.Zero
	container, err := p.resolveTarget(ctx, env)
	if err != nil {
		return "", zero, err
	}
	looter := container
	if env.SourceActorID != container.ID {
		looter, err = p.store.Get(ctx, env.SourceActorID)
		if err != nil {
			return "", zero, err
		}
	}
	if !controlsSource(requester, env.RequestingUserID, looter) || !canUseContainer(requester, env.RequestingUserID, container) {
		return "", zero, ErrNoPermission
	}

	ref := protocol.ParseRef(env.ItemOrCurrencyID, p.table.Has)
	if ref.Kind == protocol.RefCurrency {
		return p.lootCurrency(ctx, container, looter, ref, env.Quantity)
	}

	moved, err := actor.MoveStack(container, looter, ref.ID, env.Quantity, p.pol.RemoveEmptyStacks, false)
	if errors.Is(err, actor.ErrNotFound) {
		// The object already vanished; a benign race, not a fault.
		return "", zero, silent(err)
	}
	if err != nil {
		return "", zero, err
	}
	if err := p.store.Put(ctx, container); err != nil {
		return "", zero, err
	}
	if err := p.store.Put(ctx, looter); err != nil {
		return "", zero, err
	}
	p.notify(container, fmt.Sprintf("%s loots %dx %s.", looter.Name, moved.Quantity, moved.DisplayName), moved.Stack)
	return fmt.Sprintf("looted %dx %s", moved.Quantity, moved.DisplayName), zero, nil
}

// lootCurrency moves coins of one denomination between the matching purses of
// the two actors. A zero-amount transfer is a no-op, not an error.
func (p *Processor) lootCurrency(ctx context.Context, container, looter *actor.Actor, ref protocol.Ref, qty int64) (string, decimal.Decimal, error) {
	zero := decimal.Zero
	purse := func(a *actor.Actor) ledger.Funds {
		if ref.Weightless {
			return a.AltFunds
		}
		return a.Funds
	}
	avail := purse(container)[ref.ID]
	if qty > avail || qty <= 0 {
		qty = avail
	}
	if qty == 0 {
		return "no coins to move", zero, silent(errors.New("zero-amount currency transfer"))
	}
	ensureFunds(container)
	ensureFunds(looter)
	purse(container)[ref.ID] -= qty
	purse(looter)[ref.ID] += qty
	if err := p.store.Put(ctx, container); err != nil {
		return "", zero, err
	}
	if err := p.store.Put(ctx, looter); err != nil {
		return "", zero, err
	}
	p.notify(container, fmt.Sprintf("%s loots %d %s.", looter.Name, qty, p.table.Name(ref.ID)), nil)
	return fmt.Sprintf("looted %d %s", qty, ref.ID), zero, nil
}

func (p *Processor) drop(ctx context.Context, env protocol.IntentMsg, requester *Session) (string, decimal.Decimal, error) {
	zero := decimal.Zero
	container, err := p.resolveTarget(ctx, env)
	if err != nil {
		return "", zero, err
	}
	giver := container
	if env.SourceActorID != container.ID {
		giver, err = p.store.Get(ctx, env.SourceActorID)
		if err != nil {
			return "", zero, err
		}
	}
	if !controlsSource(requester, env.RequestingUserID, giver) {
		return "", zero, ErrNoPermission
	}
	ref := protocol.ParseRef(env.ItemOrCurrencyID, p.table.Has)
	stack := giver.Stack(ref.ID)
	if stack == nil {
		// Stale drag; the requester's view was out of date.
		return "", zero, silent(actor.ErrNotFound)
	}
	if !stack.Transferable() {
		return "", zero, actor.ErrInvalidItemType
	}

	// Drops always move the full stack; there is no partial drag quantity.
	moved, err := actor.MoveStack(giver, container, ref.ID, 0, p.pol.RemoveEmptyStacks, false)
	if err != nil {
		return "", zero, err
	}

	if container.IsMerchant() && moved.UnitPrice.Sign() > 0 {
		unit := moved.UnitPrice
		if !p.exempt(moved.Stack.SubType) {
			unit = unit.Div(decimal.New(2, 0))
		}
		proceeds := unit.Mul(decimal.NewFromInt(moved.Quantity))
		ensureFunds(giver)
		giver.Funds = ledger.SpreadGain(proceeds, giver.Funds, p.table)
		if err := p.persistPair(ctx, giver, container); err != nil {
			return "", zero, err
		}
		p.notify(container, fmt.Sprintf("%s sells %dx %s to %s for %s.",
			giver.Name, moved.Quantity, moved.DisplayName, container.Name, proceeds), moved.Stack)
		return fmt.Sprintf("sold %dx %s", moved.Quantity, moved.DisplayName), proceeds, nil
	}

	if err := p.persistPair(ctx, giver, container); err != nil {
		return "", zero, err
	}
	p.notify(container, fmt.Sprintf("%s drops %dx %s into %s.",
		giver.Name, moved.Quantity, moved.DisplayName, container.Name), moved.Stack)
	return fmt.Sprintf("dropped %dx %s", moved.Quantity, moved.DisplayName), zero, nil
}

func (p *Processor) give(ctx context.Context, env protocol.IntentMsg, requester *Session) (string, decimal.Decimal, error) {
	zero := decimal.Zero
	if env.Quantity <= 0 {
		return "zero quantity", zero, silent(errors.New("non-positive give quantity"))
	}
	giver, err := p.store.Get(ctx, env.SourceActorID)
	if err != nil {
		return "", zero, silent(err)
	}
	// A self-transfer splits a stack on one record; work on a single copy so
	// the debit and the credit land in the same write.
	receiver := giver
	if env.TargetActorID != env.SourceActorID {
		receiver, err = p.store.Get(ctx, env.TargetActorID)
		if err != nil {
			return "", zero, silent(err)
		}
	}
	if !controlsSource(requester, env.RequestingUserID, giver) {
		return "", zero, ErrNoPermission
	}
	ref := protocol.ParseRef(env.ItemOrCurrencyID, p.table.Has)
	stack := giver.Stack(ref.ID)
	if stack == nil {
		return "", zero, silent(actor.ErrNotFound)
	}
	if !stack.Transferable() {
		return "", zero, actor.ErrInvalidItemType
	}

	moved, err := actor.MoveStack(giver, receiver, ref.ID, env.Quantity, p.pol.RemoveEmptyStacks, false)
	if err != nil {
		return "", zero, err
	}
	if err := p.persistPair(ctx, giver, receiver); err != nil {
		return "", zero, err
	}
	// Self-transfers split a stack in place; announcing them uniformly is a
	// UX choice, and we keep quiet about them.
	if giver.ID != receiver.ID {
		p.notify(receiver, fmt.Sprintf("%s gives %dx %s to %s.",
			giver.Name, moved.Quantity, moved.DisplayName, receiver.Name), moved.Stack)
	}
	return fmt.Sprintf("gave %dx %s", moved.Quantity, moved.DisplayName), zero, nil
}

// ConvertLoot liquidates every stack on the actor into coins at resale value.
// One SpreadGain for the whole batch keeps the rounding loss to a single
// remainder instead of one per item.
func (p *Processor) ConvertLoot(ctx context.Context, actorID string) error {
	a, err := p.store.Get(ctx, actorID)
	if err != nil {
		return err
	}
	total := decimal.Zero
	for _, s := range a.Stacks {
		total = total.Add(actor.SaleValue(s, p.exempt, false))
	}
	ensureFunds(a)
	a.Funds = ledger.SpreadGain(total, a.Funds, p.table)
	a.Stacks = nil
	if err := p.store.Put(ctx, a); err != nil {
		return err
	}
	p.notify(a, fmt.Sprintf("%s converts its loot into %s.", a.Name, total), nil)
	return nil
}

// SplitCoins distributes both purses of the container evenly among the given
// recipients (owner user id -> that user's character actor id). Remainders
// stay with the container.
func (p *Processor) SplitCoins(ctx context.Context, containerID string, recipients map[string]string) error {
	c, err := p.store.Get(ctx, containerID)
	if err != nil {
		return err
	}
	var targets []string
	for _, userID := range c.Owners() {
		if actorID, ok := recipients[userID]; ok && actorID != "" {
			targets = append(targets, actorID)
		}
	}
	if len(targets) == 0 {
		return nil
	}
	sort.Strings(targets)

	share, remains := ledger.Split(c.Funds, len(targets))
	altShare, altRemains := ledger.Split(c.AltFunds, len(targets))
	if share.IsZero() && altShare.IsZero() {
		return nil
	}

	for _, id := range targets {
		recv, err := p.store.Get(ctx, id)
		if err != nil {
			return err
		}
		ensureFunds(recv)
		for denom, n := range share {
			recv.Funds[denom] += n
		}
		for denom, n := range altShare {
			recv.AltFunds[denom] += n
		}
		if err := p.store.Put(ctx, recv); err != nil {
			return err
		}
		p.notify(c, fmt.Sprintf("%s receives a share of the loot from %s.", recv.Name, c.Name), nil)
	}
	c.Funds = remains
	c.AltFunds = altRemains
	return p.store.Put(ctx, c)
}

func (p *Processor) persistPair(ctx context.Context, a, b *actor.Actor) error {
	if err := p.store.Put(ctx, a); err != nil {
		return err
	}
	return p.store.Put(ctx, b)
}

func (p *Processor) notify(speaker *actor.Actor, text string, item *actor.Stack) {
	if !p.pol.AnnounceChat || p.out == nil {
		return
	}
	msg := protocol.NoticeMsg{
		Type:            protocol.TypeNotice,
		ProtocolVersion: protocol.Version,
		Text:            text,
	}
	if speaker != nil {
		msg.SpeakerActorID = speaker.ID
		msg.SpeakerName = speaker.Name
	}
	if item != nil {
		msg.ItemID = item.ID
		msg.ItemName = item.DisplayName(false)
	}
	p.out.Broadcast(msg)
}

func (p *Processor) errorTo(userID, code, message string) {
	if p.out == nil {
		return
	}
	p.out.Broadcast(protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		TargetUserID:    userID,
		Code:            code,
		Message:         message,
	})
}

func (p *Processor) audit(env protocol.IntentMsg, cost decimal.Decimal, err error, detail, code string) {
	if p.trades == nil {
		return
	}
	e := tradelog.Entry{
		Time:        time.Now().UTC(),
		Kind:        env.Kind,
		RequestedBy: env.RequestingUserID,
		SourceActor: env.SourceActorID,
		TargetActor: env.TargetActorID,
		ItemRef:     env.ItemOrCurrencyID,
		Quantity:    env.Quantity,
		OK:          err == nil,
		Code:        code,
		Detail:      detail,
	}
	if cost.Sign() > 0 {
		e.Cost = cost.String()
	}
	if err != nil {
		e.Detail = err.Error()
	}
	if werr := p.trades.Write(e); werr != nil {
		p.log.Printf("trade log: %v", werr)
	}
}

func ensureFunds(a *actor.Actor) {
	if a.Funds == nil {
		a.Funds = ledger.Funds{}
	}
	if a.AltFunds == nil {
		a.AltFunds = ledger.Funds{}
	}
}
