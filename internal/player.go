package internal

type Player struct {
	Id   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`

	Score      int `json:"score"`
	RoundScore int `json:"round_score"`
	TurnScore  int `json:"turn_score"`

	IsActive        bool `json:"is_active"`
	IsCurrentPlayer bool `json:"is_current_player"`
	IsMainPlayer    bool `json:"is_main_player"`

	RemainingTurns int   `json:"remaining_turns"`
	PersonalCard   *Card `json:"personal_card,omitempty"`

	// ConnectionRef is the transport handle (socket id); InviteConnectionRef
	// for offline players.
	ConnectionRef string `json:"connection_ref"`
}

// ResetForRound clears turn- and round-scoped state at the start of a round.
func (p *Player) ResetForRound(remainingTurns int) {
	p.IsCurrentPlayer = false
	p.IsActive = true
	p.IsMainPlayer = false
	p.TurnScore = 0
	p.RoundScore = 0
	p.RemainingTurns = remainingTurns
}

// ResetForTurn reactivates the player and clears turn-scoped state. Used
// between turns of the elimination round, where inactivity only lasts one
// main-player turn.
func (p *Player) ResetForTurn() {
	p.IsCurrentPlayer = false
	p.IsActive = true
	p.IsMainPlayer = false
	p.TurnScore = 0
}

// Clone returns a copy safe to hand to broadcasts and snapshots.
func (p *Player) Clone() *Player {
	cp := *p
	if p.PersonalCard != nil {
		card := *p.PersonalCard
		cp.PersonalCard = &card
	}
	return &cp
}
