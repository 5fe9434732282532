package auction

import (
	"context"
	"errors"
	"testing"

	"harvestbid.org/internal/catalog"
	"harvestbid.org/internal/chat"
)

func TestGateDeniesBeforeClose(t *testing.T) {
	svc, crops := newTestService(t)
	ctx := context.Background()
	cropID := listCrop(t, crops, "farmer-1", 0)

	if _, err := svc.PlaceBid(ctx, cropID, "bidder-a", "", 10000); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.AuthorizeChat(ctx, cropID, "farmer-1", "farmer"); !errors.Is(err, ErrAuctionNotClosed) {
		t.Fatalf("farmer before close: %v", err)
	}
	// The highest bidder is not a winner until close.
	if _, err := svc.AuthorizeChat(ctx, cropID, "bidder-a", "bidder"); !errors.Is(err, ErrAuctionNotClosed) {
		t.Fatalf("bidder before close: %v", err)
	}
}

func TestGateAfterClose(t *testing.T) {
	svc, crops := newTestService(t)
	ctx := context.Background()
	cropID := listCrop(t, crops, "farmer-1", 0)

	if _, err := svc.PlaceBid(ctx, cropID, "bidder-a", "", 10000); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CloseAuction(ctx, cropID); err != nil {
		t.Fatal(err)
	}

	grant, err := svc.AuthorizeChat(ctx, cropID, "farmer-1", "farmer")
	if err != nil {
		t.Fatal(err)
	}
	if grant.CounterpartID != "bidder-a" {
		t.Fatalf("farmer's counterpart is %q, want the winner", grant.CounterpartID)
	}

	if _, err := svc.AuthorizeChat(ctx, cropID, "farmer-2", "farmer"); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("foreign farmer: %v", err)
	}
	if _, err := svc.AuthorizeChat(ctx, cropID, "bidder-b", "bidder"); !errors.Is(err, ErrNotWinner) {
		t.Fatalf("non-winner: %v", err)
	}
	if _, err := svc.AuthorizeChat(ctx, cropID, "bidder-a", "auditor"); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("unknown role: %v", err)
	}
	if _, err := svc.AuthorizeChat(ctx, "no-such-crop", "bidder-a", "bidder"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing crop: %v", err)
	}
}

// Crops closed before outcome records existed still authorize through the
// legacy fallbacks: current bid first, then the crop's cached winner fields.
func TestGateLegacyWinnerFallbacks(t *testing.T) {
	crops := catalog.NewInMemory()
	messages := chat.NewInMemory()
	store := NewMemoryStore(crops, messages)
	svc := NewService(store, crops, messages)
	ctx := context.Background()

	// Closed crop with a current bid but no outcome.
	withBid := &catalog.Crop{FarmerID: "farmer-1", Name: "Rice"}
	if err := crops.CreateCrop(ctx, withBid); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.PlaceBid(ctx, withBid.ID, "bidder-a", "", 8000); err != nil {
		t.Fatal(err)
	}
	if err := crops.CloseCrop(ctx, withBid.ID, "", "", 0); err != nil {
		t.Fatal(err)
	}
	grant, err := svc.AuthorizeChat(ctx, withBid.ID, "bidder-a", "bidder")
	if err != nil {
		t.Fatalf("current-bid fallback: %v", err)
	}
	if grant.CounterpartID != "farmer-1" {
		t.Fatalf("unexpected counterpart: %+v", grant)
	}

	// Closed crop with only the cached winner field.
	cached := &catalog.Crop{FarmerID: "farmer-1", Name: "Corn"}
	if err := crops.CreateCrop(ctx, cached); err != nil {
		t.Fatal(err)
	}
	if err := crops.CloseCrop(ctx, cached.ID, "bidder-z", "z@example.com", 4000); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AuthorizeChat(ctx, cached.ID, "bidder-a", "bidder"); !errors.Is(err, ErrNotWinner) {
		t.Fatalf("cached-winner fallback should deny non-winner: %v", err)
	}
	if _, err := svc.AuthorizeChat(ctx, cached.ID, "bidder-z", "bidder"); err != nil {
		t.Fatalf("cached-winner fallback: %v", err)
	}
}

func TestMessagesGoThroughGate(t *testing.T) {
	svc, crops := newTestService(t)
	ctx := context.Background()
	cropID := listCrop(t, crops, "farmer-1", 0)

	if _, err := svc.PlaceBid(ctx, cropID, "bidder-a", "", 10000); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SendMessage(ctx, cropID, "bidder-a", "bidder", "hello"); !errors.Is(err, ErrAuctionNotClosed) {
		t.Fatalf("message before close: %v", err)
	}
	if _, err := svc.CloseAuction(ctx, cropID); err != nil {
		t.Fatal(err)
	}

	sent, err := svc.SendMessage(ctx, cropID, "bidder-a", "bidder", "hello")
	if err != nil {
		t.Fatal(err)
	}
	if sent.ReceiverID != "farmer-1" {
		t.Fatalf("message routed to %q, want the farmer", sent.ReceiverID)
	}
	reply, err := svc.SendMessage(ctx, cropID, "farmer-1", "farmer", "hi there")
	if err != nil {
		t.Fatal(err)
	}
	if reply.ReceiverID != "bidder-a" {
		t.Fatalf("reply routed to %q, want the winner", reply.ReceiverID)
	}

	msgs, err := svc.Messages(ctx, cropID, "farmer-1", "farmer")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].Body != "hello" {
		t.Fatalf("unexpected thread: %+v", msgs)
	}
	if _, err := svc.Messages(ctx, cropID, "bidder-b", "bidder"); !errors.Is(err, ErrNotWinner) {
		t.Fatalf("outsider read the thread: %v", err)
	}
}
