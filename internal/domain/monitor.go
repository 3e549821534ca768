package domain

import "time"

// Domain — область видимости живого канала. Ровно один домен
// выбран в каждый момент времени в рамках сессии дашборда.
type Domain struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Trackable bool   `json:"trackable"`
}

// Типы сообщений живого канала.
const (
	ChannelMsgInitial  = "initial"
	ChannelMsgNewEvent = "new_event"
)

// BotTypeOnDemand — классификация бота, запрошенного по требованию
// (пришел проверить страницу после упоминания в ответе модели).
const BotTypeOnDemand = "on_demand"

// BotEvent — одно событие бот-трафика из живого канала.
type BotEvent struct {
	Timestamp      time.Time `json:"timestamp"`
	IsBot          bool      `json:"is_bot"`
	BotType        string    `json:"bot_type"`
	Provider       string    `json:"provider"`
	Verified       bool      `json:"verified"`
	PotentialSpoof bool      `json:"potential_spoof"`
	Path           string    `json:"path,omitempty"`
	UserAgent      string    `json:"user_agent,omitempty"`
}

// AggregateStats — сводные счетчики бот-трафика. Мутируются двумя путями:
// целиком заменяются снапшотом и точечно инкрементируются на каждом событии.
type AggregateStats struct {
	Total      int64            `json:"total"`
	BotTotal   int64            `json:"bot_total"`
	OnDemand   int64            `json:"on_demand"`
	Verified   int64            `json:"verified"`
	Spoofed    int64            `json:"spoofed"`
	ByProvider map[string]int64 `json:"by_provider,omitempty"`
	ByType     map[string]int64 `json:"by_type,omitempty"`
}

// Clone — глубокая копия для безопасной публикации между горутинами.
func (s AggregateStats) Clone() AggregateStats {
	out := s
	if s.ByProvider != nil {
		out.ByProvider = make(map[string]int64, len(s.ByProvider))
		for k, v := range s.ByProvider {
			out.ByProvider[k] = v
		}
	}
	if s.ByType != nil {
		out.ByType = make(map[string]int64, len(s.ByType))
		for k, v := range s.ByType {
			out.ByType[k] = v
		}
	}
	return out
}

// ConnectionState — состояние живого канала. Владеет им только ChannelManager:
// переходы происходят исключительно из колбеков жизненного цикла соединения
// и таймера переподключения, никогда напрямую из UI-кода.
type ConnectionState int32

const (
	ConnClosed ConnectionState = iota
	ConnConnecting
	ConnOpen
	ConnReconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case ConnClosed:
		return "closed"
	case ConnConnecting:
		return "connecting"
	case ConnOpen:
		return "open"
	case ConnReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}
