package core

import (
	"net/mail"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailMessage_Render(t *testing.T) {
	conf := &Config{AppName: "J & J Secondary School", FrontendBaseURL: "http://localhost:3000"}

	t.Run("templated", func(t *testing.T) {
		msg := NewEmailMessage(
			mail.Address{Name: "Ama Banda", Address: "ama@test.mw"},
			"Application Received",
			"application_received",
			struct {
				FullName          string
				ApplicationNumber string
			}{"Ama Banda", "APP20260001"},
		)
		require.NoError(t, msg.Render(conf))
		assert.Contains(t, msg.TextContent, "Dear Ama Banda,")
		assert.Contains(t, msg.TextContent, "APP20260001")
		assert.Contains(t, msg.TextContent, "J & J Secondary School")
		assert.Contains(t, msg.HTMLContent, "<b>APP20260001</b>")
		assert.Contains(t, msg.HTMLContent, "J &amp; J Secondary School")
		assert.True(t, msg.HasContent())
	})

	t.Run("status specific content", func(t *testing.T) {
		data := struct {
			FullName, ApplicationNumber, Status, StatusLabel, AdminNotes string
		}{"Ama Banda", "APP20260001", "rejected", "Rejected", "class is full"}
		msg := NewEmailMessage(mail.Address{Address: "ama@test.mw"}, "Update", "application_status", data)
		require.NoError(t, msg.Render(conf))
		assert.Contains(t, msg.TextContent, "was not successful")
		assert.Contains(t, msg.TextContent, "class is full")
		assert.NotContains(t, msg.TextContent, "Congratulations")
	})

	t.Run("otp expiry", func(t *testing.T) {
		data := struct {
			FullName, ApplicationNumber, Username, OTP string
			ExpiresAt                                  time.Time
		}{"Ama Banda", "APP20260001", "ama.banda", "123456", time.Date(2026, 1, 2, 10, 30, 0, 0, time.UTC)}
		msg := NewEmailMessage(mail.Address{Address: "ama@test.mw"}, "OTP", "signup_otp", data)
		require.NoError(t, msg.Render(conf))
		assert.Contains(t, msg.TextContent, "One-time password: 123456")
		assert.Contains(t, msg.TextContent, "02 Jan 2026 10:30 UTC")
	})

	t.Run("plain body", func(t *testing.T) {
		msg := &EmailMessage{To: []mail.Address{{Address: "ama@test.mw"}}, Subject: "Hi", BodyStr: "hello"}
		require.NoError(t, msg.Render(conf))
		assert.Equal(t, "hello", msg.TextContent)
		assert.Empty(t, msg.HTMLContent)
	})

	t.Run("unknown template", func(t *testing.T) {
		msg := NewEmailMessage(mail.Address{Address: "ama@test.mw"}, "Hi", "lol", nil)
		assert.Error(t, msg.Render(conf))
	})
}

func TestEmailMessage_Recipients(t *testing.T) {
	msg := &EmailMessage{
		To:  []mail.Address{{Address: "a@test.mw"}},
		Cc:  []mail.Address{{Address: "b@test.mw"}},
		Bcc: []mail.Address{{Address: "c@test.mw"}},
	}
	assert.Equal(t, []string{"a@test.mw", "b@test.mw", "c@test.mw"}, msg.Recipients())
	assert.True(t, msg.HasRecipients())
}
