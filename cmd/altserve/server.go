// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"

	altium "github.com/saferwall/altium"
	"github.com/saferwall/altium/log"
)

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeOperation      = -32000
)

// maxLineBytes bounds one request line. Attachments travel base64-encoded
// inside the line, so the ceiling is generous.
const maxLineBytes = 64 << 20

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type errorData struct {
	Kind altium.Kind `json:"kind"`
}

// server reads one request per line and writes one response per line.
// Requests are handled strictly one at a time.
type server struct {
	engine *altium.Engine
	in     io.Reader
	out    io.Writer
	logger *log.Helper
}

func newServer(engine *altium.Engine, in io.Reader, out io.Writer,
	logger log.Logger) *server {
	return &server{
		engine: engine,
		in:     in,
		out:    out,
		logger: log.NewHelper(logger),
	}
}

// run serves until EOF on the input.
func (s *server) run() error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	w := bufio.NewWriter(s.out)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		resp := s.handleLine(line)
		enc, err := json.Marshal(resp)
		if err != nil {
			return err
		}
		if _, err := w.Write(append(enc, '\n')); err != nil {
			return err
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (s *server) handleLine(line []byte) *response {
	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		return &response{JSONRPC: "2.0", Error: &rpcError{
			Code: codeParseError, Message: "parse error"}}
	}
	resp := &response{JSONRPC: "2.0", ID: req.ID}
	if req.Method == "" {
		resp.Error = &rpcError{Code: codeInvalidRequest, Message: "missing method"}
		return resp
	}

	handler, ok := tools[req.Method]
	if !ok {
		resp.Error = &rpcError{Code: codeMethodNotFound,
			Message: "method not found: " + req.Method}
		return resp
	}

	s.logger.Debugf("dispatch %s", req.Method)
	result, err := handler(s, req.Params)
	if err != nil {
		resp.Error = toRPCError(err)
		return resp
	}
	resp.Result = result
	return resp
}

// toRPCError maps an engine failure onto the wire shape: a one-line
// message plus the error kind. Paths have already been sanitised by the
// engine.
func toRPCError(err error) *rpcError {
	var oe *altium.OpError
	if errors.As(err, &oe) {
		code := codeOperation
		if oe.Kind == altium.KindInvalidArgument {
			code = codeInvalidParams
		}
		return &rpcError{Code: code, Message: oe.Error(),
			Data: errorData{Kind: oe.Kind}}
	}
	return &rpcError{Code: codeOperation, Message: err.Error(),
		Data: errorData{Kind: altium.KindOf(err)}}
}
