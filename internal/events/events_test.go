package events

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Gunvolt24/goodsfeed/internal/domain"
)

type nopLogger struct{}

func (nopLogger) Infof(context.Context, string, ...any)  {}
func (nopLogger) Warnf(context.Context, string, ...any)  {}
func (nopLogger) Errorf(context.Context, string, ...any) {}

type recordingApplier struct {
	got []domain.Event
	err error
}

func (a *recordingApplier) Apply(_ context.Context, ev domain.Event) error {
	if a.err != nil {
		return a.err
	}
	a.got = append(a.got, ev)
	return nil
}

const (
	goodsCreatedJSON  = `{"type":"goods.created","goods":{"id":1,"owner_id":2,"category_id":5,"status":1,"updated_at":100}}`
	favoriteAddedJSON = `{"type":"favorite.added","user_id":7,"goods_id":1,"at":200}`
	userJSON          = `{"type":"user.registered","user_id":7,"at":300}`
)

func TestDecode_OK(t *testing.T) {
	ev, err := Decode([]byte(goodsCreatedJSON))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Type != domain.EventGoodsCreated || ev.Goods == nil || ev.Goods.ID != 1 || *ev.Goods.CategoryID != 5 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestDecode_Invalid(t *testing.T) {
	cases := map[string]string{
		"not json":          `{"type":`,
		"unknown field":     `{"type":"user.registered","user_id":7,"at":1,"extra":true}`,
		"trailing data":     userJSON + ` {}`,
		"no type":           `{"user_id":7,"at":1}`,
		"unknown type":      `{"type":"goods.teleported"}`,
		"goods missing":     `{"type":"goods.created"}`,
		"bad status":        `{"type":"goods.created","goods":{"id":1,"owner_id":2,"status":9,"updated_at":1}}`,
		"bad category":      `{"type":"goods.created","goods":{"id":1,"owner_id":2,"category_id":0,"status":1,"updated_at":1}}`,
		"no updated_at":     `{"type":"goods.removed","goods":{"id":1,"owner_id":2,"status":5}}`,
		"previous mismatch": `{"type":"goods.mutated","goods":{"id":1,"owner_id":2,"status":4,"updated_at":2},"previous":{"id":3,"owner_id":2,"status":1,"updated_at":1}}`,
		"favorite no at":    `{"type":"favorite.added","user_id":7,"goods_id":1}`,
		"favorite no goods": `{"type":"favorite.removed","user_id":7}`,
		"user no id":        `{"type":"user.updated","at":1}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(raw))
			if !errors.Is(err, ErrInvalidEvent) {
				t.Fatalf("want ErrInvalidEvent, got %v", err)
			}
		})
	}
}

func TestDecode_MutatedWithoutPrevious(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"goods.mutated","goods":{"id":1,"owner_id":2,"status":4,"updated_at":2}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Previous != nil {
		t.Fatalf("previous must stay nil")
	}
}

func TestHandler_HandleMessage(t *testing.T) {
	ctx := context.Background()
	app := &recordingApplier{}
	h := NewHandler(app, nopLogger{})

	if err := h.HandleMessage(ctx, []byte(favoriteAddedJSON)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(app.got) != 1 || app.got[0].GoodsID != 1 {
		t.Fatalf("event not applied: %+v", app.got)
	}

	if err := h.HandleMessage(ctx, []byte(`garbage`)); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("want ErrInvalidEvent, got %v", err)
	}

	down := errors.New("redis: connection refused")
	app.err = down
	if err := h.HandleMessage(ctx, []byte(favoriteAddedJSON)); !errors.Is(err, down) || errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("want transient error, got %v", err)
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func TestReplayFile_JSONL_Auto_Mixed(t *testing.T) {
	app := &recordingApplier{}
	path := writeFile(t, "events.jsonl", goodsCreatedJSON+"\n\n"+`{"type":"nope"}`+"\n"+favoriteAddedJSON+"\n")

	res, err := ReplayFile(context.Background(), NewHandler(app, nopLogger{}), path, FormatAuto)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.String() != "2 applied / 1 invalid" {
		t.Fatalf("unexpected summary: %s", res)
	}
	if len(app.got) != 2 || app.got[1].Type != domain.EventFavoriteAdded {
		t.Fatalf("unexpected events: %+v", app.got)
	}
}

func TestReplayFile_JSON_ObjectAndArray(t *testing.T) {
	ctx := context.Background()

	app := &recordingApplier{}
	res, err := ReplayFile(ctx, NewHandler(app, nopLogger{}), writeFile(t, "one.json", goodsCreatedJSON), FormatAuto)
	if err != nil || res.Applied != 1 || res.Invalid != 0 {
		t.Fatalf("single object: res=%v err=%v", res, err)
	}

	app = &recordingApplier{}
	arr := "[" + strings.Join([]string{goodsCreatedJSON, `{"type":""}`, userJSON}, ",") + "]"
	res, err = ReplayFile(ctx, NewHandler(app, nopLogger{}), writeFile(t, "many.json", arr), FormatJSON)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.String() != "2 applied / 1 invalid" {
		t.Fatalf("unexpected summary: %s", res)
	}
}

func TestReplayFile_StopsOnTransientError(t *testing.T) {
	app := &recordingApplier{err: errors.New("store down")}
	path := writeFile(t, "events.jsonl", goodsCreatedJSON+"\n"+userJSON+"\n")

	res, err := ReplayFile(context.Background(), NewHandler(app, nopLogger{}), path, FormatJSONL)
	if err == nil || !strings.Contains(err.Error(), "line 1") {
		t.Fatalf("want error on line 1, got %v", err)
	}
	if res.Applied != 0 {
		t.Fatalf("nothing must be applied: %v", res)
	}
}

func TestReplayFile_Errors(t *testing.T) {
	ctx := context.Background()
	h := NewHandler(&recordingApplier{}, nopLogger{})

	if _, err := ReplayFile(ctx, h, filepath.Join(t.TempDir(), "missing.jsonl"), FormatAuto); err == nil {
		t.Fatalf("expected open error")
	}
	if _, err := ReplayFile(ctx, h, writeFile(t, "x.txt", userJSON), InputFormat("xml")); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}
