package dispatch

import "sync"

// Progress is one update about a running campaign
type Progress struct {
	CampaignID     string `json:"campaign_id"`
	Position       int    `json:"position,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Status         string `json:"status,omitempty"`
	Error          string `json:"error,omitempty"`
	Sent           int    `json:"sent"`
	Failed         int    `json:"failed"`
	Total          int    `json:"total"`
	Done           bool   `json:"done"`
	CampaignStatus string `json:"campaign_status,omitempty"`
}

// Hub fans progress updates out to subscribers of a campaign.
// Slow subscribers miss updates rather than stall the dispatcher.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan Progress]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Progress]struct{})}
}

// Subscribe returns a channel of updates for campaignID and a function that unsubscribes
// and closes the channel
func (h *Hub) Subscribe(campaignID string) (<-chan Progress, func()) {
	ch := make(chan Progress, 32)
	h.mu.Lock()
	if h.subs[campaignID] == nil {
		h.subs[campaignID] = make(map[chan Progress]struct{})
	}
	h.subs[campaignID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[campaignID], ch)
			if len(h.subs[campaignID]) == 0 {
				delete(h.subs, campaignID)
			}
			close(ch)
		})
	}
}

// Publish delivers p to every current subscriber of its campaign
func (h *Hub) Publish(p Progress) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[p.CampaignID] {
		select {
		case ch <- p:
		default:
		}
	}
}

// Subscribers returns the number of subscribers for a campaign
func (h *Hub) Subscribers(campaignID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[campaignID])
}
