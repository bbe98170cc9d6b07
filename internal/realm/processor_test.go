package realm

import (
	"bufio"
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/shopspring/decimal"

	"lootledger/internal/actor"
	"lootledger/internal/docstore"
	"lootledger/internal/ledger"
	"lootledger/internal/persistence/tradelog"
	"lootledger/internal/policy"
	"lootledger/internal/protocol"
)

type sink struct {
	msgs []any
}

func (s *sink) Broadcast(msg any) { s.msgs = append(s.msgs, msg) }

func (s *sink) errors() []protocol.ErrorMsg {
	var out []protocol.ErrorMsg
	for _, m := range s.msgs {
		if e, ok := m.(protocol.ErrorMsg); ok {
			out = append(out, e)
		}
	}
	return out
}

func (s *sink) notices() []protocol.NoticeMsg {
	var out []protocol.NoticeMsg
	for _, m := range s.msgs {
		if n, ok := m.(protocol.NoticeMsg); ok {
			out = append(out, n)
		}
	}
	return out
}

func testTable(t *testing.T) *ledger.Table {
	t.Helper()
	tab, err := ledger.NewTable([]ledger.Denomination{
		{ID: "pp", Name: "Platinum", Rate: "100"},
		{ID: "gp", Name: "Gold", Rate: "1"},
		{ID: "sp", Name: "Silver", Rate: "0.01"},
		{ID: "cp", Name: "Copper", Rate: "0.0001"},
	})
	if err != nil {
		t.Fatalf("table: %v", err)
	}
	return tab
}

func testProcessor(t *testing.T) (*Processor, *docstore.MemStore, *sink) {
	t.Helper()
	store := docstore.NewMemStore()
	out := &sink{}
	logger := log.New(os.Stderr, "[test] ", 0)
	p := NewProcessor(store, testTable(t), policy.Defaults(), out, nil, logger)
	return p, store, out
}

func put(t *testing.T, store docstore.Store, a *actor.Actor) {
	t.Helper()
	if err := store.Put(context.Background(), a); err != nil {
		t.Fatalf("put %s: %v", a.ID, err)
	}
}

func get(t *testing.T, store docstore.Store, id string) *actor.Actor {
	t.Helper()
	a, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	return a
}

func merchant(stock int64, price int64) *actor.Actor {
	return &actor.Actor{
		ID:      "seller",
		Name:    "Marcel",
		TokenID: "tok_seller",
		Stacks: []*actor.Stack{{
			ID: "it_sword", Name: "Longsword", Type: actor.TypeWeapon,
			Quantity: stock, Price: decimal.NewFromInt(price), Identified: true,
		}},
		Permissions: map[string]actor.PermissionLevel{"u1": actor.LevelOwner},
		Config:      actor.Config{SheetType: actor.SheetMerchant},
	}
}

func player() *actor.Actor {
	return &actor.Actor{ID: "buyer", Name: "Olek", Funds: ledger.Funds{"gp": 30}}
}

var requester = &Session{UserID: "u1", Name: "olek", Scene: "scene1", CharacterID: "buyer"}

func buyIntent(qty int64) protocol.IntentMsg {
	return protocol.IntentMsg{
		Type:             protocol.TypeIntent,
		Kind:             protocol.KindBuy,
		RequestingUserID: "u1",
		SourceActorID:    "buyer",
		ContainerTokenID: "tok_seller",
		ItemOrCurrencyID: "it_sword",
		Quantity:         qty,
		AuthorityUserID:  "gm",
	}
}

func TestBuyExactFunds(t *testing.T) {
	// Scenario: 3 units at 10 each, buyer worth exactly 30.
	p, store, out := testProcessor(t)
	put(t, store, merchant(3, 10))
	put(t, store, player())

	p.ProcessIntent(context.Background(), buyIntent(3), requester)

	if errs := out.errors(); len(errs) != 0 {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	buyer := get(t, store, "buyer")
	if len(buyer.Stacks) != 1 || buyer.Stacks[0].Quantity != 3 {
		t.Fatalf("buyer stacks = %+v", buyer.Stacks)
	}
	for denom, n := range buyer.Funds {
		if n != 0 {
			t.Fatalf("buyer still has %d %s", n, denom)
		}
	}
	seller := get(t, store, "seller")
	if seller.Stack("it_sword") != nil {
		t.Fatal("emptied seller stack should be removed")
	}
	if len(out.notices()) != 1 {
		t.Fatalf("notices = %+v", out.notices())
	}
}

func TestBuyInsufficientFundsMutatesNothing(t *testing.T) {
	p, store, out := testProcessor(t)
	put(t, store, merchant(3, 10))
	buyer := player()
	buyer.Funds = ledger.Funds{"gp": 29}
	put(t, store, buyer)

	p.ProcessIntent(context.Background(), buyIntent(3), requester)

	errs := out.errors()
	if len(errs) != 1 || errs[0].Code != protocol.ErrInsufficientFunds || errs[0].TargetUserID != "u1" {
		t.Fatalf("errors = %+v", errs)
	}
	if got := get(t, store, "buyer"); got.Funds["gp"] != 29 || len(got.Stacks) != 0 {
		t.Fatalf("buyer mutated: %+v", got)
	}
	if got := get(t, store, "seller"); got.Stack("it_sword").Quantity != 3 {
		t.Fatalf("seller mutated: %+v", got.Stacks)
	}
}

func TestBuyClampsToStock(t *testing.T) {
	p, store, out := testProcessor(t)
	put(t, store, merchant(2, 10))
	put(t, store, player())

	p.ProcessIntent(context.Background(), buyIntent(5), requester)

	if errs := out.errors(); len(errs) != 0 {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	buyer := get(t, store, "buyer")
	if buyer.Stacks[0].Quantity != 2 {
		t.Fatalf("bought %d, want 2", buyer.Stacks[0].Quantity)
	}
	if buyer.Funds["gp"] != 10 {
		t.Fatalf("buyer gp = %d, want 10", buyer.Funds["gp"])
	}
}

func TestBuySpendsWeightlessShortfall(t *testing.T) {
	p, store, out := testProcessor(t)
	put(t, store, merchant(3, 10))
	buyer := player()
	buyer.Funds = ledger.Funds{"gp": 10}
	buyer.AltFunds = ledger.Funds{"gp": 25}
	put(t, store, buyer)

	p.ProcessIntent(context.Background(), buyIntent(3), requester)

	if errs := out.errors(); len(errs) != 0 {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	got := get(t, store, "buyer")
	if got.Funds["gp"] != 0 {
		t.Fatalf("primary gp = %d, want 0", got.Funds["gp"])
	}
	if got.AltFunds["gp"] != 5 {
		t.Fatalf("weightless gp = %d, want 5", got.AltFunds["gp"])
	}
}

func TestBuyAppliesPriceModifier(t *testing.T) {
	p, store, out := testProcessor(t)
	m := merchant(1, 10)
	m.Config.PriceModifier = decimal.NewFromFloat(1.5)
	put(t, store, m)
	put(t, store, player())

	p.ProcessIntent(context.Background(), buyIntent(1), requester)

	if errs := out.errors(); len(errs) != 0 {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	got := get(t, store, "buyer")
	if got.Funds["gp"] != 15 {
		t.Fatalf("buyer gp = %d, want 15", got.Funds["gp"])
	}
}

func TestBuyUnidentifiedUsesAlternatePrice(t *testing.T) {
	p, store, out := testProcessor(t)
	m := merchant(1, 2000)
	m.Stacks[0].Identified = false
	m.Stacks[0].UnidentifiedName = "Plain Ring"
	m.Stacks[0].UnidentifiedPrice = decimal.NewFromInt(2)
	put(t, store, m)
	put(t, store, player())

	p.ProcessIntent(context.Background(), buyIntent(1), requester)

	if errs := out.errors(); len(errs) != 0 {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	got := get(t, store, "buyer")
	if got.Funds["gp"] != 28 {
		t.Fatalf("buyer gp = %d, want 28", got.Funds["gp"])
	}
	if n := out.notices(); len(n) != 1 || n[0].ItemName != "Plain Ring" {
		t.Fatalf("notices = %+v", n)
	}
}

func TestBuyMissingStack(t *testing.T) {
	p, store, out := testProcessor(t)
	put(t, store, merchant(1, 10))
	put(t, store, player())

	env := buyIntent(1)
	env.ItemOrCurrencyID = "it_gone"
	p.ProcessIntent(context.Background(), env, requester)

	errs := out.errors()
	if len(errs) != 1 || errs[0].Code != protocol.ErrNotFound {
		t.Fatalf("errors = %+v", errs)
	}
}

func TestBuyWithoutPermission(t *testing.T) {
	p, store, out := testProcessor(t)
	m := merchant(1, 10)
	m.Permissions = map[string]actor.PermissionLevel{"u1": actor.LevelObserver}
	put(t, store, m)
	put(t, store, player())

	p.ProcessIntent(context.Background(), buyIntent(1), requester)

	errs := out.errors()
	if len(errs) != 1 || errs[0].Code != protocol.ErrNoPermission {
		t.Fatalf("errors = %+v", errs)
	}
	if got := get(t, store, "seller"); got.Stack("it_sword").Quantity != 1 {
		t.Fatal("stock mutated despite rejection")
	}
}

func TestLootItem(t *testing.T) {
	p, store, out := testProcessor(t)
	c := merchant(4, 10)
	c.Config.SheetType = actor.SheetLoot
	put(t, store, c)
	put(t, store, player())

	env := buyIntent(4)
	env.Kind = protocol.KindLoot
	p.ProcessIntent(context.Background(), env, requester)

	if errs := out.errors(); len(errs) != 0 {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	looter := get(t, store, "buyer")
	if len(looter.Stacks) != 1 || looter.Stacks[0].Quantity != 4 {
		t.Fatalf("looter stacks = %+v", looter.Stacks)
	}
	// No payment on loot.
	if looter.Funds["gp"] != 30 {
		t.Fatalf("looter gp = %d, want 30", looter.Funds["gp"])
	}
}

func TestLootVanishedItemIsSilent(t *testing.T) {
	p, store, out := testProcessor(t)
	put(t, store, merchant(1, 10))
	put(t, store, player())

	env := buyIntent(1)
	env.Kind = protocol.KindLoot
	env.ItemOrCurrencyID = "it_gone"
	p.ProcessIntent(context.Background(), env, requester)

	if len(out.msgs) != 0 {
		t.Fatalf("benign race should stay silent, got %+v", out.msgs)
	}
}

func TestLootCurrencyClampsAndMoves(t *testing.T) {
	p, store, out := testProcessor(t)
	c := merchant(0, 0)
	c.Stacks = nil
	c.Funds = ledger.Funds{"gp": 5}
	put(t, store, c)
	put(t, store, player())

	env := buyIntent(9)
	env.Kind = protocol.KindLoot
	env.ItemOrCurrencyID = "gp"
	p.ProcessIntent(context.Background(), env, requester)

	if errs := out.errors(); len(errs) != 0 {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	if got := get(t, store, "seller"); got.Funds["gp"] != 0 {
		t.Fatalf("container gp = %d, want 0", got.Funds["gp"])
	}
	if got := get(t, store, "buyer"); got.Funds["gp"] != 35 {
		t.Fatalf("looter gp = %d, want 35", got.Funds["gp"])
	}
}

func TestLootWeightlessCurrency(t *testing.T) {
	p, store, out := testProcessor(t)
	c := merchant(0, 0)
	c.Stacks = nil
	c.AltFunds = ledger.Funds{"sp": 40}
	put(t, store, c)
	put(t, store, player())

	env := buyIntent(15)
	env.Kind = protocol.KindLoot
	env.ItemOrCurrencyID = "wl_sp"
	p.ProcessIntent(context.Background(), env, requester)

	if errs := out.errors(); len(errs) != 0 {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	if got := get(t, store, "seller"); got.AltFunds["sp"] != 25 {
		t.Fatalf("container wl sp = %d, want 25", got.AltFunds["sp"])
	}
	if got := get(t, store, "buyer"); got.AltFunds["sp"] != 15 {
		t.Fatalf("looter wl sp = %d, want 15", got.AltFunds["sp"])
	}
}

func TestLootZeroCurrencyIsNoop(t *testing.T) {
	p, store, out := testProcessor(t)
	c := merchant(0, 0)
	c.Stacks = nil
	put(t, store, c)
	put(t, store, player())

	env := buyIntent(5)
	env.Kind = protocol.KindLoot
	env.ItemOrCurrencyID = "gp"
	p.ProcessIntent(context.Background(), env, requester)

	if len(out.msgs) != 0 {
		t.Fatalf("zero-amount transfer should stay silent, got %+v", out.msgs)
	}
	if got := get(t, store, "buyer"); got.Funds["gp"] != 30 {
		t.Fatalf("looter mutated: %+v", got.Funds)
	}
}

func dropIntent() protocol.IntentMsg {
	return protocol.IntentMsg{
		Type:             protocol.TypeIntent,
		Kind:             protocol.KindDrop,
		RequestingUserID: "u1",
		SourceActorID:    "buyer",
		ContainerTokenID: "tok_seller",
		ItemOrCurrencyID: "it_gem",
		AuthorityUserID:  "gm",
	}
}

func giverWithGem(qty int64, subType string) *actor.Actor {
	a := player()
	a.Funds = ledger.Funds{}
	a.Stacks = []*actor.Stack{{
		ID: "it_gem", Name: "Gemstone", Type: actor.TypeLoot, SubType: subType,
		Quantity: qty, Price: decimal.NewFromInt(10), Identified: true,
	}}
	return a
}

func TestDropToMerchantSellsAtHalfPrice(t *testing.T) {
	// Scenario: price 10, quantity 2, non-exempt: credit floor(10/2)*2 = 10.
	p, store, out := testProcessor(t)
	put(t, store, merchant(0, 0))
	put(t, store, giverWithGem(2, ""))

	p.ProcessIntent(context.Background(), dropIntent(), requester)

	if errs := out.errors(); len(errs) != 0 {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	giver := get(t, store, "buyer")
	if giver.Funds["gp"] != 10 {
		t.Fatalf("giver gp = %d, want 10", giver.Funds["gp"])
	}
	if len(giver.Stacks) != 0 {
		t.Fatalf("giver keeps stack: %+v", giver.Stacks)
	}
	seller := get(t, store, "seller")
	found := false
	for _, s := range seller.Stacks {
		if s.Name == "Gemstone" && s.Quantity == 2 {
			found = true
		}
	}
	if !found {
		t.Fatalf("merchant did not receive goods: %+v", seller.Stacks)
	}
}

func TestDropTradeGoodsSellAtFullPrice(t *testing.T) {
	p, store, out := testProcessor(t)
	put(t, store, merchant(0, 0))
	put(t, store, giverWithGem(2, actor.SubTypeTradeGoods))

	p.ProcessIntent(context.Background(), dropIntent(), requester)

	if errs := out.errors(); len(errs) != 0 {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	if got := get(t, store, "buyer"); got.Funds["gp"] != 20 {
		t.Fatalf("giver gp = %d, want 20", got.Funds["gp"])
	}
}

func TestDropToPlainContainerIsDonation(t *testing.T) {
	p, store, out := testProcessor(t)
	c := merchant(0, 0)
	c.Config.SheetType = actor.SheetLoot
	put(t, store, c)
	put(t, store, giverWithGem(2, ""))

	p.ProcessIntent(context.Background(), dropIntent(), requester)

	if errs := out.errors(); len(errs) != 0 {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	if got := get(t, store, "buyer"); len(got.Funds) != 0 || got.Funds["gp"] != 0 {
		t.Fatalf("donation credited funds: %+v", got.Funds)
	}
}

func TestDropRejectsNonTransferable(t *testing.T) {
	p, store, out := testProcessor(t)
	put(t, store, merchant(0, 0))
	g := giverWithGem(1, "")
	g.Stacks[0].Type = "feat"
	put(t, store, g)

	p.ProcessIntent(context.Background(), dropIntent(), requester)

	errs := out.errors()
	if len(errs) != 1 || errs[0].Code != protocol.ErrInvalidItemType {
		t.Fatalf("errors = %+v", errs)
	}
	if got := get(t, store, "buyer"); len(got.Stacks) != 1 {
		t.Fatal("rejected drop mutated the giver")
	}
}

func giveIntent(qty int64) protocol.IntentMsg {
	return protocol.IntentMsg{
		Type:             protocol.TypeIntent,
		Kind:             protocol.KindGive,
		RequestingUserID: "u1",
		SourceActorID:    "buyer",
		TargetActorID:    "friend",
		ItemOrCurrencyID: "it_gem",
		Quantity:         qty,
		AuthorityUserID:  "gm",
	}
}

func TestGiveMovesAndAnnounces(t *testing.T) {
	p, store, out := testProcessor(t)
	put(t, store, giverWithGem(3, ""))
	put(t, store, &actor.Actor{ID: "friend", Name: "Mirela"})

	p.ProcessIntent(context.Background(), giveIntent(2), requester)

	if errs := out.errors(); len(errs) != 0 {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	if got := get(t, store, "buyer"); got.Stack("it_gem").Quantity != 1 {
		t.Fatalf("giver quantity = %+v", got.Stacks)
	}
	if got := get(t, store, "friend"); len(got.Stacks) != 1 || got.Stacks[0].Quantity != 2 {
		t.Fatalf("receiver stacks = %+v", got.Stacks)
	}
	if len(out.notices()) != 1 {
		t.Fatalf("notices = %+v", out.notices())
	}
}

func TestGiveZeroQuantityIsNoop(t *testing.T) {
	p, store, out := testProcessor(t)
	put(t, store, giverWithGem(3, ""))
	put(t, store, &actor.Actor{ID: "friend", Name: "Mirela"})

	p.ProcessIntent(context.Background(), giveIntent(0), requester)

	if len(out.msgs) != 0 {
		t.Fatalf("zero-quantity give should stay silent, got %+v", out.msgs)
	}
	if got := get(t, store, "buyer"); got.Stack("it_gem").Quantity != 3 {
		t.Fatal("giver mutated")
	}
}

func TestGiveToSelfSplitsQuietly(t *testing.T) {
	p, store, out := testProcessor(t)
	put(t, store, giverWithGem(4, ""))

	env := giveIntent(1)
	env.TargetActorID = "buyer"
	p.ProcessIntent(context.Background(), env, requester)

	if len(out.notices()) != 0 {
		t.Fatalf("self-transfer announced: %+v", out.notices())
	}
	got := get(t, store, "buyer")
	if len(got.Stacks) != 2 {
		t.Fatalf("stacks = %+v", got.Stacks)
	}
	var qty int64
	for _, s := range got.Stacks {
		qty += s.Quantity
	}
	if qty != 4 {
		t.Fatalf("total quantity %d, want 4", qty)
	}
}

func TestGiveRequiresOwnCharacter(t *testing.T) {
	p, store, out := testProcessor(t)
	put(t, store, giverWithGem(3, ""))
	put(t, store, &actor.Actor{ID: "friend", Name: "Mirela"})

	stranger := &Session{UserID: "u9", CharacterID: "someone-else"}
	env := giveIntent(1)
	env.RequestingUserID = "u9"
	p.ProcessIntent(context.Background(), env, stranger)

	errs := out.errors()
	if len(errs) != 1 || errs[0].Code != protocol.ErrNoPermission {
		t.Fatalf("errors = %+v", errs)
	}
}

// ownShop is a character who is also the container they transact with: the
// same record sits on both sides of the trade.
func ownShop(stock, price int64) *actor.Actor {
	a := merchant(stock, price)
	a.ID = "buyer"
	a.Name = "Olek"
	a.TokenID = "tok_buyer"
	a.Funds = ledger.Funds{"gp": 30}
	return a
}

func totalQuantity(a *actor.Actor) int64 {
	var n int64
	for _, s := range a.Stacks {
		n += s.Quantity
	}
	return n
}

func TestBuyFromOwnContainerConservesStock(t *testing.T) {
	p, store, out := testProcessor(t)
	put(t, store, ownShop(3, 10))

	env := buyIntent(2)
	env.ContainerTokenID = "tok_buyer"
	p.ProcessIntent(context.Background(), env, requester)

	if errs := out.errors(); len(errs) != 0 {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	got := get(t, store, "buyer")
	if n := totalQuantity(got); n != 3 {
		t.Fatalf("total quantity = %d, want 3: %+v", n, got.Stacks)
	}
	// The payment still happens; a sale never credits the merchant record.
	if got.Funds["gp"] != 10 {
		t.Fatalf("gp = %d, want 10", got.Funds["gp"])
	}
}

func TestLootFromOwnContainerConservesItems(t *testing.T) {
	p, store, out := testProcessor(t)
	c := ownShop(3, 10)
	c.Config.SheetType = actor.SheetLoot
	put(t, store, c)

	env := buyIntent(2)
	env.Kind = protocol.KindLoot
	env.ContainerTokenID = "tok_buyer"
	p.ProcessIntent(context.Background(), env, requester)

	if errs := out.errors(); len(errs) != 0 {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	got := get(t, store, "buyer")
	if n := totalQuantity(got); n != 3 {
		t.Fatalf("total quantity = %d, want 3: %+v", n, got.Stacks)
	}
	if got.Funds["gp"] != 30 {
		t.Fatalf("gp = %d, want 30", got.Funds["gp"])
	}
}

func TestDropIntoOwnContainerConservesItems(t *testing.T) {
	p, store, out := testProcessor(t)
	c := giverWithGem(2, "")
	c.TokenID = "tok_buyer"
	c.Config.SheetType = actor.SheetLoot
	put(t, store, c)

	env := dropIntent()
	env.ContainerTokenID = "tok_buyer"
	p.ProcessIntent(context.Background(), env, requester)

	if errs := out.errors(); len(errs) != 0 {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	got := get(t, store, "buyer")
	if n := totalQuantity(got); n != 2 {
		t.Fatalf("total quantity = %d, want 2: %+v", n, got.Stacks)
	}
	if got.Funds["gp"] != 0 {
		t.Fatalf("donation to yourself credited funds: %+v", got.Funds)
	}
}

func TestConvertLoot(t *testing.T) {
	p, store, _ := testProcessor(t)
	c := merchant(0, 0)
	c.Config.SheetType = actor.SheetLoot
	c.Stacks = []*actor.Stack{
		{ID: "i1", Name: "Gem", Type: actor.TypeLoot, Quantity: 2, Price: decimal.NewFromInt(10), Identified: true},
		{ID: "i2", Name: "Silk", Type: actor.TypeLoot, SubType: actor.SubTypeTradeGoods, Quantity: 1, Price: decimal.NewFromInt(7), Identified: true},
	}
	put(t, store, c)

	if err := p.ConvertLoot(context.Background(), "seller"); err != nil {
		t.Fatalf("convert: %v", err)
	}
	got := get(t, store, "seller")
	if len(got.Stacks) != 0 {
		t.Fatalf("stacks remain: %+v", got.Stacks)
	}
	// 5*2 + 7 = 17
	if got.Funds["gp"] != 17 {
		t.Fatalf("funds = %+v, want gp=17", got.Funds)
	}
}

func TestSplitCoins(t *testing.T) {
	// Scenario: 7 base units split between two owners: 3 each, 1 remains.
	p, store, _ := testProcessor(t)
	c := merchant(0, 0)
	c.Stacks = nil
	c.Funds = ledger.Funds{"gp": 7}
	c.Permissions = map[string]actor.PermissionLevel{
		"u1": actor.LevelOwner,
		"u2": actor.LevelOwner,
		"u3": actor.LevelObserver,
	}
	put(t, store, c)
	put(t, store, &actor.Actor{ID: "char1", Name: "Olek"})
	put(t, store, &actor.Actor{ID: "char2", Name: "Mirela"})

	recipients := map[string]string{"u1": "char1", "u2": "char2", "u3": "char3"}
	if err := p.SplitCoins(context.Background(), "seller", recipients); err != nil {
		t.Fatalf("split: %v", err)
	}

	if got := get(t, store, "char1"); got.Funds["gp"] != 3 {
		t.Fatalf("char1 gp = %d, want 3", got.Funds["gp"])
	}
	if got := get(t, store, "char2"); got.Funds["gp"] != 3 {
		t.Fatalf("char2 gp = %d, want 3", got.Funds["gp"])
	}
	if got := get(t, store, "seller"); got.Funds["gp"] != 1 {
		t.Fatalf("container gp = %d, want 1", got.Funds["gp"])
	}
}

func TestAuditRecordsRejectionCode(t *testing.T) {
	store := docstore.NewMemStore()
	out := &sink{}
	dir := t.TempDir()
	trades := tradelog.NewWriter(dir)
	p := NewProcessor(store, testTable(t), policy.Defaults(), out, trades, log.New(os.Stderr, "[test] ", 0))
	put(t, store, merchant(3, 10))
	b := player()
	b.Funds = ledger.Funds{"gp": 5}
	put(t, store, b)

	p.ProcessIntent(context.Background(), buyIntent(3), requester)
	if err := trades.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	entries := readTrades(t, dir)
	if len(entries) != 1 {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].OK {
		t.Fatalf("rejected intent logged as ok: %+v", entries[0])
	}
	if entries[0].Code != protocol.ErrInsufficientFunds {
		t.Fatalf("code = %q, want %q", entries[0].Code, protocol.ErrInsufficientFunds)
	}
}

func TestAuditLeavesCodeEmptyOnSuccess(t *testing.T) {
	store := docstore.NewMemStore()
	out := &sink{}
	dir := t.TempDir()
	trades := tradelog.NewWriter(dir)
	p := NewProcessor(store, testTable(t), policy.Defaults(), out, trades, log.New(os.Stderr, "[test] ", 0))
	put(t, store, merchant(3, 10))
	put(t, store, player())

	p.ProcessIntent(context.Background(), buyIntent(1), requester)
	if err := trades.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	entries := readTrades(t, dir)
	if len(entries) != 1 || !entries[0].OK || entries[0].Code != "" {
		t.Fatalf("entries = %+v", entries)
	}
}

func readTrades(t *testing.T, dir string) []tradelog.Entry {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(dir, "trades-*.jsonl.zst"))
	if err != nil || len(files) != 1 {
		t.Fatalf("files = %v (%v)", files, err)
	}
	f, err := os.Open(files[0])
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer dec.Close()

	var got []tradelog.Entry
	sc := bufio.NewScanner(dec.IOReadCloser())
	for sc.Scan() {
		var e tradelog.Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("unmarshal %q: %v", sc.Text(), err)
		}
		got = append(got, e)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return got
}
