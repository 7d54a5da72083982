// SPDX-FileCopyrightText: Copyright 2026 The MPD Authors
// SPDX-License-Identifier: Apache-2.0

// Package utmpwtmp implements the UTMP/WTMP accounting backend of
// spec.md §4.7/§10: Start calls login(), Stop calls logout()+logwtmp().
// No pack example ships a utmp writer, so this package encodes the
// classic fixed-width utmp record directly with encoding/binary — exactly
// the shape of raw struct I/O the original C daemon itself performs, and
// the one place in this repo a stdlib-only implementation is the right
// call (see DESIGN.md).
package utmpwtmp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"
)

const (
	lineSize = 32
	nameSize = 32
	hostSize = 256

	userProcess int16 = 7
	deadProcess int16 = 8
)

// record is the fixed-width utmp/wtmp entry shape (a simplified,
// byte-stable rendition of the classic Linux utmp struct: type, pid,
// line, id, user, host, session, timestamp, padding). Every field is
// fixed-size so records can be located and rewritten in place by offset.
type record struct {
	Type    int16
	_       [2]byte // alignment padding, matches the C struct's layout
	PID     int32
	Line    [lineSize]byte
	ID      [4]byte
	User    [nameSize]byte
	Host    [hostSize]byte
	Session int32
	TVSec   int32
	TVUsec  int32
}

// recordSize is the encoded size of record; computed once via binary.Size
// so callers never have to keep a hand-maintained constant in sync with
// the struct above.
var recordSize = binary.Size(record{})

// Entry is the caller-facing accounting record (spec.md §4.7 "login(utmp_entry{...})").
type Entry struct {
	Line     string
	Host     string
	User     string
	PID      int32
	Session  int32
	Time     time.Time
}

func (e Entry) toRecord(typ int16) record {
	var r record
	r.Type = typ
	r.PID = e.PID
	r.Session = e.Session
	copy(r.Line[:], e.Line)
	copy(r.User[:], e.User)
	copy(r.Host[:], e.Host)
	t := e.Time
	if t.IsZero() {
		t = time.Now()
	}
	r.TVSec = int32(t.Unix())
	r.TVUsec = int32(t.Nanosecond() / 1000)
	return r
}

func encode(r record) []byte {
	buf := &bytes.Buffer{}
	buf.Grow(recordSize)
	// binary.Write cannot fail against a bytes.Buffer with a fixed-size
	// struct of fixed-size fields.
	_ = binary.Write(buf, binary.LittleEndian, r)
	return buf.Bytes()
}

func decode(b []byte) (record, error) {
	var r record
	if len(b) < recordSize {
		return r, fmt.Errorf("utmpwtmp: short record: %d bytes, need %d", len(b), recordSize)
	}
	err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &r)
	return r, err
}

func lineOf(r record) string {
	n := bytes.IndexByte(r.Line[:], 0)
	if n < 0 {
		n = len(r.Line)
	}
	return string(r.Line[:n])
}

// Store is the UTMP/WTMP backend's file access: a fixed-slot utmp file
// rewritten in place by line, and an append-only wtmp log.
type Store struct {
	UtmpPath string
	WtmpPath string

	// openFile is overridden in tests; defaults to os.OpenFile.
	openFile func(name string, flag int, perm os.FileMode) (*os.File, error)
}

func (s *Store) open(name string, flag int) (*os.File, error) {
	open := s.openFile
	if open == nil {
		open = os.OpenFile
	}
	return open(name, flag, 0o644)
}

// Login writes a USER_PROCESS record for entry into the utmp file (adding
// a new slot if the line isn't already present) and appends the same
// record to wtmp (spec.md §4.7 "Start ⇒ login(utmp_entry{...})").
func (s *Store) Login(entry Entry) error {
	rec := entry.toRecord(userProcess)
	if err := s.writeUtmp(entry.Line, rec); err != nil {
		return err
	}
	return s.appendWtmp(rec)
}

// Logout overwrites line's utmp slot with a DEAD_PROCESS record and
// appends a matching logout record to wtmp (spec.md §4.7 "Stop ⇒
// logout(line); logwtmp(line, "", "")").
func (s *Store) Logout(line string) error {
	rec := Entry{Line: line}.toRecord(deadProcess)
	if err := s.writeUtmp(line, rec); err != nil {
		return err
	}
	return s.appendWtmp(rec)
}

// writeUtmp scans the utmp file for an existing slot matching line,
// overwriting it in place; if none exists, appends a new slot.
func (s *Store) writeUtmp(line string, rec record) error {
	f, err := s.open(s.UtmpPath, os.O_RDWR|os.O_CREATE)
	if err != nil {
		return fmt.Errorf("utmpwtmp: open %s: %w", s.UtmpPath, err)
	}
	defer f.Close()

	buf := make([]byte, recordSize)
	offset := int64(0)
	for {
		n, err := f.ReadAt(buf, offset)
		if n == recordSize {
			existing, decErr := decode(buf)
			if decErr == nil && lineOf(existing) == line {
				_, werr := f.WriteAt(encode(rec), offset)
				return werr
			}
		}
		if err != nil {
			break
		}
		offset += int64(recordSize)
	}

	_, err = f.WriteAt(encode(rec), offset)
	return err
}

// appendWtmp appends rec to the wtmp log, which is never rewritten in
// place (it is a pure history of every login/logout).
func (s *Store) appendWtmp(rec record) error {
	f, err := s.open(s.WtmpPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND)
	if err != nil {
		return fmt.Errorf("utmpwtmp: open %s: %w", s.WtmpPath, err)
	}
	defer f.Close()
	_, err = io.Copy(f, bytes.NewReader(encode(rec)))
	return err
}
