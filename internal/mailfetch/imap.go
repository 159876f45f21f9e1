package mailfetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	gomail "github.com/emersion/go-message/mail"

	"streamshare/backend/internal/domain"
)

// imapSession 抽象一次 IMAP 会话，便于测试替换真实客户端。
type imapSession interface {
	Login(username, password string) error
	Select(mailbox string) error
	SearchSince(since time.Time) ([]imap.UID, error)
	FetchBodies(uids []imap.UID) ([]fetchedMail, error)
	Logout() error
	Close() error
}

// fetchedMail IMAP 会话取回的单封邮件。
type fetchedMail struct {
	Subject string
	Sender  string
	Date    time.Time
	Raw     []byte
}

// IMAPTransport 直连 IMAP 协议的取件通道。
//
// Endpoint 填 host:port（缺省端口按 993 TLS 处理），凭证使用
// MailboxConfig 的 Username/Password。每次取件建立独立会话，
// 结束即登出，不缓存连接。
type IMAPTransport struct {
	dialTimeout time.Duration
	lookback    time.Duration // 只检视最近这段时间内到达的邮件
	newSession  func(cfg domain.MailboxConfig) (imapSession, error)
}

// IMAPOption 定制 IMAP 通道行为。
type IMAPOption func(*IMAPTransport)

// WithIMAPLookback 调整搜索窗口（默认 30 分钟）。
func WithIMAPLookback(d time.Duration) IMAPOption {
	return func(t *IMAPTransport) {
		if d > 0 {
			t.lookback = d
		}
	}
}

// withIMAPSessionFactory 测试用：替换会话工厂。
func withIMAPSessionFactory(factory func(cfg domain.MailboxConfig) (imapSession, error)) IMAPOption {
	return func(t *IMAPTransport) {
		t.newSession = factory
	}
}

// NewIMAPTransport 创建 IMAP 取件通道。
func NewIMAPTransport(dialTimeout time.Duration, opts ...IMAPOption) *IMAPTransport {
	t := &IMAPTransport{
		dialTimeout: dialTimeout,
		lookback:    30 * time.Minute,
	}
	if t.dialTimeout <= 0 {
		t.dialTimeout = 30 * time.Second
	}
	t.newSession = t.dialSession
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Fetch 建立会话、搜索近期邮件并投影为候选列表。
func (t *IMAPTransport) Fetch(ctx context.Context, cfg domain.MailboxConfig) ([]domain.CandidateMessage, error) {
	if !cfg.FetchReady() {
		return nil, ErrConfigIncomplete
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("%w: imap credentials missing", ErrConfigIncomplete)
	}

	session, err := t.newSession(cfg)
	if err != nil {
		return nil, classifyDialError(err)
	}
	defer session.Close()

	if err := session.Login(cfg.Username, cfg.Password); err != nil {
		return nil, fmt.Errorf("%w: imap auth: %v", ErrTransportRefused, err)
	}
	if err := session.Select("INBOX"); err != nil {
		return nil, fmt.Errorf("imap select: %w", err)
	}

	uids, err := session.SearchSince(time.Now().UTC().Add(-t.lookback))
	if err != nil {
		return nil, fmt.Errorf("imap search: %w", err)
	}
	if len(uids) == 0 {
		_ = session.Logout()
		return nil, nil
	}

	fetched, err := session.FetchBodies(uids)
	if err != nil {
		return nil, fmt.Errorf("imap fetch: %w", err)
	}
	_ = session.Logout()

	messages := make([]domain.CandidateMessage, 0, len(fetched))
	for _, fm := range fetched {
		if ctx.Err() != nil {
			return nil, classifyDialError(ctx.Err())
		}
		messages = append(messages, projectIMAPMail(fm))
	}
	return messages, nil
}

// projectIMAPMail 把原始邮件转换为候选邮件，正文只取文本部分。
func projectIMAPMail(fm fetchedMail) domain.CandidateMessage {
	msg := domain.CandidateMessage{
		Subject: fm.Subject,
		Sender:  fm.Sender,
		Date:    fm.Date,
		Body:    extractTextBody(fm.Raw),
	}
	if raw, err := json.Marshal(map[string]string{
		"subject": fm.Subject,
		"from":    fm.Sender,
		"date":    fm.Date.Format(time.RFC3339),
	}); err == nil {
		msg.Raw = raw
	}
	return msg
}

// extractTextBody 解析 MIME 结构并取第一个 text/plain 部分。
// 解析失败时退回原始字节的字符串形式，模式匹配仍然可用。
func extractTextBody(raw []byte) string {
	reader, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return string(raw)
	}
	var plain, html string
	for {
		part, perr := reader.NextPart()
		if errors.Is(perr, io.EOF) {
			break
		}
		if perr != nil {
			break
		}
		inline, ok := part.Header.(*gomail.InlineHeader)
		if !ok {
			continue
		}
		mimeType, _, cerr := inline.ContentType()
		if cerr != nil {
			continue
		}
		content, rerr := io.ReadAll(io.LimitReader(part.Body, maxResponseBytes))
		if rerr != nil {
			continue
		}
		switch {
		case strings.HasPrefix(mimeType, "text/plain") && plain == "":
			plain = string(content)
		case strings.HasPrefix(mimeType, "text/html") && html == "":
			html = string(content)
		}
	}
	if plain != "" {
		return plain
	}
	return html
}

// dialSession 建立真实的 IMAP TLS 会话。
func (t *IMAPTransport) dialSession(cfg domain.MailboxConfig) (imapSession, error) {
	host, port, err := net.SplitHostPort(cfg.Endpoint)
	if err != nil {
		host = cfg.Endpoint
		port = "993"
	}
	addr := net.JoinHostPort(host, port)
	opts := &imapclient.Options{Dialer: &net.Dialer{Timeout: t.dialTimeout}}
	client, err := imapclient.DialTLS(addr, opts)
	if err != nil {
		return nil, err
	}
	return &imapClientSession{client: client}, nil
}

// imapClientSession go-imap/v2 客户端的会话包装。
type imapClientSession struct {
	client *imapclient.Client
}

func (s *imapClientSession) Login(username, password string) error {
	return s.client.Login(username, password).Wait()
}

func (s *imapClientSession) Select(mailbox string) error {
	_, err := s.client.Select(mailbox, nil).Wait()
	return err
}

func (s *imapClientSession) SearchSince(since time.Time) ([]imap.UID, error) {
	data, err := s.client.UIDSearch(&imap.SearchCriteria{Since: since}, nil).Wait()
	if err != nil {
		return nil, err
	}
	return data.AllUIDs(), nil
}

func (s *imapClientSession) FetchBodies(uids []imap.UID) ([]fetchedMail, error) {
	uidSet := imap.UIDSetNum(uids...)
	fetchOpts := &imap.FetchOptions{
		UID:          true,
		Envelope:     true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{{}},
	}
	buffers, err := s.client.Fetch(uidSet, fetchOpts).Collect()
	if err != nil {
		return nil, err
	}

	mails := make([]fetchedMail, 0, len(buffers))
	for _, buf := range buffers {
		body := buf.FindBodySection(&imap.FetchItemBodySection{})
		if body == nil {
			continue
		}
		fm := fetchedMail{
			Date: buf.InternalDate,
			Raw:  append([]byte(nil), body...),
		}
		if fm.Date.IsZero() {
			fm.Date = time.Now().UTC()
		}
		if buf.Envelope != nil {
			fm.Subject = buf.Envelope.Subject
			if len(buf.Envelope.From) > 0 {
				fm.Sender = buf.Envelope.From[0].Addr()
			}
		}
		mails = append(mails, fm)
	}
	return mails, nil
}

func (s *imapClientSession) Logout() error {
	return s.client.Logout().Wait()
}

func (s *imapClientSession) Close() error {
	return s.client.Close()
}
