// Package telegram is the chat front-end: two photos in, one report out.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"face-match/api/internal/analysis"
	"face-match/api/internal/logger"
	"face-match/api/internal/metrics"
)

// Analyzer is satisfied by *pipeline.Analyzer.
type Analyzer interface {
	Analyze(ctx context.Context, male, female string) (*analysis.RelationshipAnalysis, error)
}

// Sender is the part of *tgbotapi.BotAPI the router talks to.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Fetcher downloads a photo by file id, refusing anything over maxBytes.
type Fetcher func(ctx context.Context, fileID string, maxBytes int) ([]byte, error)

var ErrPhotoTooLarge = errors.New("photo too large")

type Router struct {
	Bot      Sender
	Fetch    Fetcher
	Analyzer Analyzer
	Messages analysis.Messages
	Log      logger.Logger

	Timeout       time.Duration
	MaxImageBytes int

	// spawn runs an analysis; tests replace it to stay synchronous
	spawn func(func())
}

// NewRouter wires a router to a live bot.
func NewRouter(bot *tgbotapi.BotAPI, a Analyzer) *Router {
	return &Router{
		Bot:           bot,
		Fetch:         BotFetcher(bot),
		Analyzer:      a,
		Messages:      analysis.DefaultMessages(),
		Log:           logger.NewNop(),
		Timeout:       180 * time.Second,
		MaxImageBytes: 10 << 20,
	}
}

func (r *Router) HandleUpdate(upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil {
		metrics.RecordBotUpdate("other")
		return
	}
	cid := msg.Chat.ID

	switch {
	case msg.IsCommand():
		metrics.RecordBotUpdate("command")
		r.HandleCommand(cid, msg.Command())
	case len(msg.Photo) > 0:
		metrics.RecordBotUpdate("photo")
		r.acceptPhoto(cid, msg.Photo[len(msg.Photo)-1])
	default:
		metrics.RecordBotUpdate("text")
		r.send(cid, textHint)
	}
}

func (r *Router) HandleCommand(cid int64, cmd string) {
	switch cmd {
	case "start":
		r.send(cid, startText)
	case "reset":
		resetSession(cid)
		r.send(cid, resetText)
	default:
		r.send(cid, "未知命令。可用命令：/start /reset")
	}
}

func (r *Router) acceptPhoto(cid int64, ph tgbotapi.PhotoSize) {
	if ph.FileSize > 0 && ph.FileSize > r.MaxImageBytes {
		r.send(cid, tooLargeText)
		return
	}

	s := sessionFor(cid)
	if s.busy() {
		r.send(cid, busyText)
		return
	}

	ctx := context.Background()
	img, err := r.Fetch(ctx, ph.FileID, r.MaxImageBytes)
	if err != nil {
		if errors.Is(err, ErrPhotoTooLarge) {
			r.send(cid, tooLargeText)
			return
		}
		r.Log.Warn(ctx, "photo download failed", logger.Int64("chat_id", cid), logger.Error(err))
		r.send(cid, fmt.Sprintf("照片下载失败：%v", err))
		return
	}

	male, female, ready := s.add(encode(img))
	if !ready {
		r.send(cid, maleReceivedText)
		return
	}

	r.send(cid, analyzingText)
	run := r.spawn
	if run == nil {
		run = func(fn func()) { go fn() }
	}
	run(func() {
		defer s.done()
		r.analyze(cid, male, female)
	})
}

func (r *Router) analyze(cid int64, male, female string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.Timeout)
	defer cancel()

	res, err := r.Analyzer.Analyze(ctx, male, female)
	if err != nil {
		v := analysis.Classify(err, r.Messages)
		r.Log.Warn(ctx, "bot analysis failed",
			logger.Int64("chat_id", cid), logger.String("category", string(v.Category)), logger.Error(err))
		r.send(cid, v.Message+"\n\n"+v.Retry)
		return
	}
	r.send(cid, FormatReport(res))
}

func (r *Router) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, truncate(text, maxMessageRunes))
	if _, err := r.Bot.Send(msg); err != nil {
		r.Log.Warn(context.Background(), "telegram send failed", logger.Int64("chat_id", chatID), logger.Error(err))
	}
}

const (
	startText = "发送两张正面清晰的照片：第一张为男方，第二张为女方，我会为你们做一次面相合盘。\n命令：/reset 重新开始"
	resetText = "已重置，请先发送男方照片。"
	textHint  = "请发送照片：第一张男方，第二张女方。"

	maleReceivedText = "已收到男方照片，请发送女方照片。"
	analyzingText    = "已收到女方照片，正在合盘分析，请稍候…"
	busyText         = "上一次分析仍在进行中，请稍候。"
	tooLargeText     = "照片太大，请发送更小的照片。"
)
