// Package report accumulates the per-day trading summary and delivers it
// through a Sender at market close (or on early exit).
package report

import (
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

// Summary collects the day's action lines. Reset at each day rollover.
type Summary struct {
	lines []string
	sent  bool
}

func NewSummary() *Summary {
	return &Summary{}
}

// Add appends one action line (a buy or sell description).
func (s *Summary) Add(format string, args ...any) {
	s.lines = append(s.lines, fmt.Sprintf(format, args...))
}

// AddTotals appends the end-of-day equity and unrealized P&L block.
func (s *Summary) AddTotals(equity, unrealized float64) {
	s.lines = append(s.lines, "",
		fmt.Sprintf("EOD Equity: $%.2f", equity),
		fmt.Sprintf("Unrealized P/L: $%.2f", unrealized))
}

// Body renders the summary, or a placeholder when no trades happened.
func (s *Summary) Body() string {
	if len(s.lines) == 0 {
		return "No trades today."
	}
	return strings.Join(s.lines, "\n")
}

// Empty reports whether any lines were recorded.
func (s *Summary) Empty() bool { return len(s.lines) == 0 }

// Sent reports whether this summary was already delivered today.
func (s *Summary) Sent() bool { return s.sent }

// MarkSent records that the summary was delivered.
func (s *Summary) MarkSent() { s.sent = true }

// Reset clears the summary for a new trading day.
func (s *Summary) Reset() {
	s.lines = s.lines[:0]
	s.sent = false
}

// Sender delivers a finalized summary.
type Sender interface {
	Send(subject, body string) error
}

// SMTPSender delivers summaries over SMTP with STARTTLS.
type SMTPSender struct {
	Host     string
	Port     int
	From     string
	To       string
	Password string
}

func (s *SMTPSender) Send(subject, body string) error {
	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", s.From, s.To, subject, body)
	auth := smtp.PlainAuth("", s.From, s.Password, s.Host)
	if err := smtp.SendMail(addr, auth, s.From, []string{s.To}, []byte(msg)); err != nil {
		return fmt.Errorf("send summary email: %w", err)
	}
	return nil
}

// LogSender writes summaries to the log; used when email is disabled.
type LogSender struct {
	Log *zap.SugaredLogger
}

func (s *LogSender) Send(subject, body string) error {
	s.Log.Infow("daily summary", "subject", subject, "body", body)
	return nil
}
