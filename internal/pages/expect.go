package pages

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/plextera-e2e/internal/errs"
)

// ErrResponseNotOK is wrapped when an awaited response has a non-2xx status.
var ErrResponseNotOK = errors.New("response status is not in the success range")

// Expect registers a response wait for every pattern (a Playwright URL glob), runs trigger, and
// blocks until each pattern has seen a response. Every response must be in
// the HTTP success range. Responses are returned in pattern order.
func Expect(page playwright.Page, trigger func() error, patterns ...string) ([]playwright.Response, error) {
	responses, err := ExpectAny(page, trigger, patterns...)
	if err != nil {
		return nil, err
	}
	for _, resp := range responses {
		if !resp.Ok() {
			return nil, &errs.Error{
				Code:    errs.CodeForStatus(resp.Status()),
				Message: fmt.Sprintf("pages: %s returned %d", resp.URL(), resp.Status()),
				Status:  resp.Status(),
				Err:     ErrResponseNotOK,
			}
		}
	}
	return responses, nil
}

// ExpectOne is Expect for a single pattern.
func ExpectOne(page playwright.Page, trigger func() error, pattern string) (playwright.Response, error) {
	responses, err := Expect(page, trigger, pattern)
	if err != nil {
		return nil, err
	}
	return responses[0], nil
}

// ExpectAny is Expect without the status check, for flows that assert on a
// rejected request.
func ExpectAny(page playwright.Page, trigger func() error, patterns ...string) ([]playwright.Response, error) {
	if len(patterns) == 0 {
		return nil, trigger()
	}
	responses := make([]playwright.Response, len(patterns))
	if err := expectFrom(page, trigger, patterns, 0, responses); err != nil {
		return nil, err
	}
	return responses, nil
}

// expectFrom nests one waiter per pattern so all of them are registered
// before trigger runs.
func expectFrom(page playwright.Page, trigger func() error, patterns []string, i int, out []playwright.Response) error {
	if i == len(patterns) {
		return trigger()
	}
	resp, err := page.ExpectResponse(patterns[i], func() error {
		return expectFrom(page, trigger, patterns, i+1, out)
	})
	if err != nil {
		var coded *errs.Error
		if errors.As(err, &coded) {
			return err
		}
		if errors.Is(err, playwright.ErrTimeout) {
			return errs.Wrap(errs.Timeout, fmt.Sprintf("pages: no response for %s", patterns[i]), err)
		}
		return errs.Wrap(errs.Internal, fmt.Sprintf("pages: waiting for %s", patterns[i]), err)
	}
	out[i] = resp
	return nil
}

// DecodeJSON decodes a response body into out.
func DecodeJSON(resp playwright.Response, out any) error {
	body, err := resp.Body()
	if err != nil {
		return errs.Wrap(errs.Internal, fmt.Sprintf("pages: read body of %s", resp.URL()), err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errs.Wrap(errs.Internal, fmt.Sprintf("pages: decode body of %s", resp.URL()), err)
	}
	return nil
}

// ResourceID returns the "id" field of a JSON response body.
func ResourceID(resp playwright.Response) (string, error) {
	var body struct {
		ID string `json:"id"`
	}
	if err := DecodeJSON(resp, &body); err != nil {
		return "", err
	}
	if body.ID == "" {
		return "", errs.New(errs.NotFound, fmt.Sprintf("pages: %s response has no id", resp.URL()))
	}
	return body.ID, nil
}
