package events

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// InputFormat допустимые значения.
type InputFormat string

const (
	FormatAuto  InputFormat = "auto"
	FormatJSON  InputFormat = "json"
	FormatJSONL InputFormat = "jsonl"
)

// MessageHandler - то, чем обрабатывается каждое событие файла.
type MessageHandler interface {
	HandleMessage(ctx context.Context, raw []byte) error
}

// ReplayResult - статистика проигрывания файла событий.
type ReplayResult struct {
	Applied int
	Invalid int
}

func (r ReplayResult) String() string {
	return fmt.Sprintf("%d applied / %d invalid", r.Applied, r.Invalid)
}

// ReplayFile - проигрывает события из файла: JSON (объект или массив) или JSONL.
// Невалидные события пропускаются и считаются; первая прочая ошибка прерывает проигрывание.
func ReplayFile(ctx context.Context, h MessageHandler, filePath string, format InputFormat) (ReplayResult, error) {
	// auto по расширению
	if format == FormatAuto {
		if strings.ToLower(filepath.Ext(filePath)) == ".jsonl" {
			format = FormatJSONL
		} else {
			format = FormatJSON
		}
	}

	file, err := os.Open(filePath)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	switch format {
	case FormatJSON:
		raw, err := io.ReadAll(file)
		if err != nil {
			return ReplayResult{}, fmt.Errorf("read file: %w", err)
		}
		return replayJSON(ctx, h, raw)
	case FormatJSONL:
		return ReplayJSONLStream(ctx, h, file)
	default:
		return ReplayResult{}, fmt.Errorf("unsupported format: %s", format)
	}
}

func replayJSON(ctx context.Context, h MessageHandler, raw []byte) (ReplayResult, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		var res ReplayResult
		return res, res.apply(ctx, h, trimmed)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return ReplayResult{Invalid: 1}, fmt.Errorf("%w: invalid json array: %w", ErrInvalidEvent, err)
	}
	var res ReplayResult
	for _, item := range items {
		if err := res.apply(ctx, h, item); err != nil {
			return res, err
		}
	}
	return res, nil
}

// ReplayJSONLStream - по событию на строку; пустые строки пропускаются.
func ReplayJSONLStream(ctx context.Context, h MessageHandler, r io.Reader) (ReplayResult, error) {
	var res ReplayResult

	scanner := bufio.NewScanner(r)
	// запас на большие строки
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		if err := res.apply(ctx, h, raw); err != nil {
			return res, fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return res, fmt.Errorf("scan: %w", err)
	}
	return res, nil
}

// apply - невалидное событие учитывается и не считается ошибкой.
func (r *ReplayResult) apply(ctx context.Context, h MessageHandler, raw []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := h.HandleMessage(ctx, raw)
	switch {
	case err == nil:
		r.Applied++
		return nil
	case errors.Is(err, ErrInvalidEvent):
		r.Invalid++
		return nil
	default:
		return err
	}
}
