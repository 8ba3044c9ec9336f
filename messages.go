package main

// Messages coming from clients
type ClientMessage struct {
	Type          string   `json:"type"`                     // see dispatch in party.go
	PlayerName    string   `json:"player_name,omitempty"`    // join / draw_cards / submit_* / refresh_hand / start_round / lobby_return
	TeamName      string   `json:"team_name,omitempty"`      // join
	SelectedTerms []string `json:"selected_terms,omitempty"` // submit_selection
	Term          string   `json:"term,omitempty"`           // submit_custom_card
	Definition    string   `json:"definition,omitempty"`     // submit_custom_card
	Points        int      `json:"points,omitempty"`         // submit_custom_card
	ActorName     string   `json:"actor_name,omitempty"`     // get_card
	CardTerm      string   `json:"card_term,omitempty"`      // get_card / skip_card
}

// Broadcaster delivers a notification to every subscriber of a session.
// Implementations must not block: sessions publish while holding their lock.
type Broadcaster interface {
	Publish(sessionID string, msg any)
}

type fanout []Broadcaster

func (f fanout) Publish(sessionID string, msg any) {
	for _, b := range f {
		b.Publish(sessionID, msg)
	}
}

type RoundStartedMessage struct {
	Type             string     `json:"type"` // "round_started"
	RoundNumber      int        `json:"round_number"`
	TotalRounds      int        `json:"total_rounds"`
	ActivePoolLength int        `json:"active_pool_length"`
	TeamName         string     `json:"team_name"`
	ActorName        string     `json:"actor_name"`
	PlayerName       string     `json:"player_name,omitempty"` // who started it
	TurnOrder        []TurnSlot `json:"turn_order"`            // one pass, each member once
	NextActors       []TurnSlot `json:"next_actors"`           // turns as they will actually be played
}

type TurnStartedMessage struct {
	Type         string   `json:"type"` // "turn_started"
	TeamName     string   `json:"team_name"`
	ActorName    string   `json:"actor_name"`
	TimeLimit    int      `json:"time_limit"`
	GuesserNames []string `json:"guesser_names"`
}

type TimerMessage struct {
	Type      string `json:"type"` // "update_timer"
	TimeLeft  int    `json:"time_left"`
	ActorName string `json:"actor_name"`
	TeamName  string `json:"team_name"`
}

type GameStateMessage struct {
	Type         string `json:"type"` // "update_game_state"
	ActivePool   []Card `json:"active_pool"`
	GuessedCount int    `json:"guessed_count"`
}

type TurnEndedMessage struct {
	Type      string `json:"type"` // "turn_ended"
	ActorName string `json:"actor_name"`
	TeamName  string `json:"team_name"`
	TimeLeft  int    `json:"time_left"`
}

type RoundOverMessage struct {
	Type        string     `json:"type"` // "round_over"
	RoundNumber int        `json:"round_number"`
	Scores      string     `json:"scores"`
	Standings   []Standing `json:"standings"`
}

type RoundReadyMessage struct {
	Type        string `json:"type"` // "round_ready"
	RoundNumber int    `json:"round_number"`
}

type GameOverMessage struct {
	Type          string     `json:"type"` // "game_over"
	WinningTeam   string     `json:"winning_team"`
	WinningScore  int        `json:"winning_score"`
	RunnerUpTeam  string     `json:"runner_up_team,omitempty"`
	RunnerUpScore int        `json:"runner_up_score"`
	Standings     []Standing `json:"standings"`
}

func newGameOverMessage(r GameResult) GameOverMessage {
	msg := GameOverMessage{
		Type:         "game_over",
		WinningTeam:  r.Winner.Team,
		WinningScore: r.Winner.Score,
		Standings:    r.FullStandings,
	}
	if r.HasRunnerUp {
		msg.RunnerUpTeam = r.RunnerUp.Team
		msg.RunnerUpScore = r.RunnerUp.Score
	}
	return msg
}

type PauseMessage struct {
	Type   string `json:"type"` // "update_pause"
	Paused bool   `json:"paused"`
}

// SubmissionStatusMessage tells the waiting room who has finished submitting.
type SubmissionStatusMessage struct {
	Type         string         `json:"type"` // "submission_status"
	AllSubmitted bool           `json:"all_submitted"`
	Players      []PlayerStatus `json:"players"`
}

// Sent only to the client that joined
type JoinedMessage struct {
	Type       string `json:"type"` // "joined"
	SessionID  string `json:"session_id"`
	PlayerName string `json:"player_name"`
	TeamName   string `json:"team_name"`
}

// Sent only to the owning client after draw/refresh/submit
type HandMessage struct {
	Type      string `json:"type"` // "hand"
	Cards     []Card `json:"cards"`
	Submitted int    `json:"submitted"`
	Remaining int    `json:"remaining"`
	Done      bool   `json:"done"`
}

// Sent only to the client whose command failed
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RedirectMessage struct {
	Type string `json:"type"` // "redirect_to_lobby"
	URL  string `json:"url"`
}
