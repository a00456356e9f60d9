package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/maltedev/marketplace-harvester/internal/scraper"
)

func TestRenderOutcomes(t *testing.T) {
	var buf bytes.Buffer
	renderOutcomes(&buf, []scraper.Outcome{
		{Target: "gamis", Identity: "a", StartPage: 0, LastPage: 8, Captured: 40, Finished: true},
		{Target: "tas", Identity: "b", StartPage: 2, LastPage: 2, Class: scraper.ClassCaptcha},
	})

	out := buf.String()
	assert.Contains(t, out, "gamis")
	assert.Contains(t, out, "0-8")
	assert.Contains(t, out, "finished")
	assert.Contains(t, out, "captcha")
}

func TestResultLabel(t *testing.T) {
	assert.Equal(t, "login-failed", resultLabel(scraper.Outcome{Class: scraper.ClassLoginFailed}))
	assert.Equal(t, "finished", resultLabel(scraper.Outcome{Finished: true}))
	assert.Equal(t, "error", resultLabel(scraper.Outcome{Error: "context canceled"}))
	assert.Equal(t, "exhausted", resultLabel(scraper.Outcome{}))
}
