package wal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// filePerm rw-r--r--
const filePerm = 0o644

// ErrCorrupt 檔案中段有無法解析的紀錄
var ErrCorrupt = errors.New("wal: corrupt record")

// WAL 一行一筆 JSON 的 Write-Ahead Log，每次寫入都 fsync
type WAL struct {
	mu   sync.Mutex
	file *os.File
}

// NewWAL 開啟或建立 WAL 檔案，寫入一律接在檔尾 (O_APPEND)
func NewWAL(path string) (*WAL, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, filePerm)
	if err != nil {
		return nil, fmt.Errorf("wal: open %s: %w", path, err)
	}
	return &WAL{file: file}, nil
}

// Write 寫入一筆紀錄，回傳 nil 才代表已落地
func (w *WAL) Write(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("wal: encode: %w", err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.file.Write(line); err != nil {
		return fmt.Errorf("wal: write: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("wal: sync: %w", err)
	}
	return nil
}

// ReadAll 從頭依序讀出每一筆紀錄交給 fn，空行略過
// fn 回傳錯誤時停止並原樣回傳；中段壞掉的紀錄回傳 ErrCorrupt (附行號)
// 最後一行沒有換行代表寫到一半當機：解析不了就截掉，完整的就補上換行
func (w *WAL) ReadAll(fn func(jsonRaw []byte) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("wal: seek: %w", err)
	}
	reader := bufio.NewReader(w.file)
	var offset int64
	for lineNo := 1; ; lineNo++ {
		line, err := reader.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("wal: read: %w", err)
		}
		eof := err != nil
		record := bytes.TrimSpace(line)
		if len(record) > 0 {
			if !json.Valid(record) {
				if eof {
					return w.truncateTail(offset)
				}
				return fmt.Errorf("%w at line %d", ErrCorrupt, lineNo)
			}
			if cbErr := fn(record); cbErr != nil {
				return cbErr
			}
			if eof {
				return w.terminateTail()
			}
		}
		if eof {
			return nil
		}
		offset += int64(len(line))
	}
}

// truncateTail 丟掉 offset 之後半寫入的紀錄
func (w *WAL) truncateTail(offset int64) error {
	if err := w.file.Truncate(offset); err != nil {
		return fmt.Errorf("wal: truncate torn tail: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("wal: sync: %w", err)
	}
	return nil
}

// terminateTail 最後一筆完整但缺換行時補上，避免下一筆接在同一行
func (w *WAL) terminateTail() error {
	if _, err := w.file.Write([]byte{'\n'}); err != nil {
		return fmt.Errorf("wal: write: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("wal: sync: %w", err)
	}
	return nil
}

func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
