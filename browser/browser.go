// SPDX-License-Identifier: GPL-3.0-or-later

// Package browser is a minimal Chrome DevTools Protocol client. It
// connects to a page target's websocket debugger url and exposes just
// enough of Runtime.evaluate for the page adapter to read and poke the
// host webmail tab.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sweepkit/go-webmail-sweeper/log"

	"github.com/sirupsen/logrus"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	connectTimeout = 10 * time.Second
	callTimeout    = 15 * time.Second

	// outerHTML of a busy mailbox can be large
	readLimit = 32 * 1024 * 1024
)

type Client struct {
	conn *websocket.Conn

	mu     sync.Mutex
	nextId int64

	l *logrus.Logger
}

// Connect dials a page target's webSocketDebuggerUrl as reported by the
// browser's /json endpoint.
func Connect(devtoolsUrl string) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, devtoolsUrl, nil)
	if err != nil {
		return nil, fmt.Errorf("could not connect to devtools endpoint: %w", err)
	}
	conn.SetReadLimit(readLimit)

	l := log.Logger(log.LOG_BROWSER)
	l.WithField("url", devtoolsUrl).Info("Connected")

	return &Client{conn: conn, l: l}, nil
}

func (c *Client) Close() error {
	err := c.conn.Close(websocket.StatusNormalClosure, "")
	if err != nil {
		return fmt.Errorf("could not close devtools connection: %w", err)
	}
	c.l.Info("Disconnected")
	return nil
}

type request struct {
	Id     int64       `json:"id"`
	Method string      `json:"method"`
	Params interface{} `json:"params,omitempty"`
}

type response struct {
	Id     int64           `json:"id"`
	Method string          `json:"method,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *callError      `json:"error,omitempty"`
}

type callError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// call performs one request/response roundtrip. Protocol events arriving
// in between are skipped; only the response carrying our id completes
// the call.
func (c *Client) call(method string, params interface{}) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextId++
	id := c.nextId

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	err := wsjson.Write(ctx, c.conn, request{Id: id, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("could not send %s: %w", method, err)
	}

	for {
		resp := response{}
		err = wsjson.Read(ctx, c.conn, &resp)
		if err != nil {
			return nil, fmt.Errorf("could not read response for %s: %w", method, err)
		}

		if resp.Id != id {
			c.l.WithFields(logrus.Fields{"method": resp.Method, "id": resp.Id}).Debug("Skipping unsolicited message")
			continue
		}

		if resp.Error != nil {
			return nil, fmt.Errorf("%s failed: %s (%d)", method, resp.Error.Message, resp.Error.Code)
		}

		return resp.Result, nil
	}
}

type evaluateParams struct {
	Expression    string `json:"expression"`
	ReturnByValue bool   `json:"returnByValue"`
}

type evaluateResult struct {
	Result struct {
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
	} `json:"result"`
	ExceptionDetails *struct {
		Text      string `json:"text"`
		Exception *struct {
			Description string `json:"description"`
		} `json:"exception"`
	} `json:"exceptionDetails"`
}

// Evaluate runs a javascript expression in the page and returns its
// JSON-encoded value.
func (c *Client) Evaluate(expression string) (json.RawMessage, error) {
	raw, err := c.call("Runtime.evaluate", evaluateParams{Expression: expression, ReturnByValue: true})
	if err != nil {
		return nil, err
	}

	result := evaluateResult{}
	err = json.Unmarshal(raw, &result)
	if err != nil {
		return nil, fmt.Errorf("could not decode evaluate result: %w", err)
	}

	if result.ExceptionDetails != nil {
		description := result.ExceptionDetails.Text
		if result.ExceptionDetails.Exception != nil {
			description = result.ExceptionDetails.Exception.Description
		}
		return nil, fmt.Errorf("script failed in page: %s", description)
	}

	return result.Result.Value, nil
}

func (c *Client) EvalString(expression string) (string, error) {
	value, err := c.Evaluate(expression)
	if err != nil {
		return "", err
	}

	s := ""
	err = json.Unmarshal(value, &s)
	if err != nil {
		return "", fmt.Errorf("expected string result: %w", err)
	}
	return s, nil
}

func (c *Client) EvalBool(expression string) (bool, error) {
	value, err := c.Evaluate(expression)
	if err != nil {
		return false, err
	}

	b := false
	err = json.Unmarshal(value, &b)
	if err != nil {
		return false, fmt.Errorf("expected bool result: %w", err)
	}
	return b, nil
}

func (c *Client) EvalInt(expression string) (int, error) {
	value, err := c.Evaluate(expression)
	if err != nil {
		return 0, err
	}

	i := 0
	err = json.Unmarshal(value, &i)
	if err != nil {
		return 0, fmt.Errorf("expected int result: %w", err)
	}
	return i, nil
}

// HTML fetches the page's full serialized markup.
func (c *Client) HTML() (string, error) {
	return c.EvalString("document.documentElement.outerHTML")
}
