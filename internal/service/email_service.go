package service

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"net/mail"
	"strings"
	texttemplate "text/template"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"

	"hanashite/internal/models"
)

// sesSender is the subset of the SES client used here
type sesSender interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailService delivers teacher alert digests through Amazon SES
type EmailService struct {
	client   sesSender
	from     string
	alertURL string
	debug    bool
	logger   *zap.Logger
}

// NewEmailService creates an email service. An empty fromEmail gives a
// disabled service that logs and drops every message.
func NewEmailService(ctx context.Context, awsRegion, fromEmail, fromName, appBaseURL string, debug bool, logger *zap.Logger) (*EmailService, error) {
	svc := &EmailService{
		alertURL: strings.TrimSuffix(appBaseURL, "/") + "/teacher/alerts",
		debug:    debug,
		logger:   logger,
	}
	if fromEmail == "" {
		logger.Info("Alert digests disabled: SES_FROM_EMAIL not configured")
		return svc, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(awsRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	svc.client = sesv2.NewFromConfig(awsCfg)
	// mail.Address encodes a Japanese display name as RFC 2047
	svc.from = (&mail.Address{Name: fromName, Address: fromEmail}).String()

	logger.Info("Alert digests enabled", zap.String("from", fromEmail), zap.String("region", awsRegion))
	return svc, nil
}

// IsEnabled reports whether digests are actually sent
func (s *EmailService) IsEnabled() bool {
	return s.client != nil
}

type digestData struct {
	TeacherName string
	Messages    []string
	Link        string
}

var digestText = texttemplate.Must(texttemplate.New("digest.txt").Parse(
	`{{.TeacherName}} 先生

以下の学生の練習状況を確認してください。

{{range .Messages}}- {{.}}
{{end}}
アラート一覧: {{.Link}}

---
このメールは Hanashite から自動送信されています。
`))

var digestHTML = htmltemplate.Must(htmltemplate.New("digest.html").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: sans-serif; line-height: 1.6; color: #333;">
	<p>{{.TeacherName}} 先生</p>
	<p>以下の学生の練習状況を確認してください。</p>
	<ul>{{range .Messages}}<li>{{.}}</li>{{end}}</ul>
	<p><a href="{{.Link}}">アラート一覧を開く</a></p>
	<p style="font-size: 12px; color: #666;">このメールは Hanashite から自動送信されています。</p>
</body>
</html>
`))

// renderDigest builds the subject and both bodies of a digest
func renderDigest(teacherName, link string, alerts []models.TeacherAlert) (subject, htmlBody, textBody string, err error) {
	data := digestData{TeacherName: teacherName, Link: link, Messages: make([]string, len(alerts))}
	for i, a := range alerts {
		data.Messages[i] = a.Message
	}

	var text, page bytes.Buffer
	if err := digestText.Execute(&text, data); err != nil {
		return "", "", "", fmt.Errorf("failed to render digest text: %w", err)
	}
	if err := digestHTML.Execute(&page, data); err != nil {
		return "", "", "", fmt.Errorf("failed to render digest html: %w", err)
	}
	subject = fmt.Sprintf("【Hanashite】練習が止まっている学生が%d名います", len(alerts))
	return subject, page.String(), text.String(), nil
}

// SendAlertDigest emails a teacher the alerts raised for their students in one scan
func (s *EmailService) SendAlertDigest(ctx context.Context, toEmail, teacherName string, alerts []models.TeacherAlert) error {
	if len(alerts) == 0 {
		return nil
	}
	if !s.IsEnabled() {
		s.logger.Debug("Skipping alert digest",
			zap.String("to", toEmail),
			zap.Int("alerts", len(alerts)))
		return nil
	}

	subject, htmlBody, textBody, err := renderDigest(teacherName, s.alertURL, alerts)
	if err != nil {
		return err
	}

	utf8 := func(v string) *types.Content {
		return &types.Content{Data: aws.String(v), Charset: aws.String("UTF-8")}
	}
	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &types.Destination{ToAddresses: []string{toEmail}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: utf8(subject),
				Body:    &types.Body{Html: utf8(htmlBody), Text: utf8(textBody)},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send alert digest to %s: %w", toEmail, err)
	}

	if s.debug {
		s.logger.Debug("Alert digest sent",
			zap.String("to", toEmail),
			zap.Int("alerts", len(alerts)),
			zap.String("message_id", aws.ToString(out.MessageId)))
	}
	return nil
}
