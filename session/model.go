package session

// State names the lifecycle stage of a registration session.
type State string

const (
	// StateVerif waits for the emailed verification code.
	StateVerif State = "verif"
	// StatePending waits for the upstream OAuth2 callback.
	StatePending State = "pending"
	// StateDone holds upstream tokens for a registered user.
	StateDone State = "done"
	// StateErrored marks a session whose flow failed downstream.
	StateErrored State = "errored"
	// StateCanceled marks a registration canceled by the user.
	StateCanceled State = "canceled"
)

// String returns the wire name of the state.
func (s State) String() string {
	return string(s)
}

// Terminal reports whether sessions in s are exempt from expiry.
func (s State) Terminal() bool {
	return s == StateDone
}

// Payload is the state-specific data carried by an [Entry]. The interface is
// sealed; only the variants declared in this package implement it.
type Payload interface {
	State() State
	isPayload()
}

// Verif is the payload of a session waiting for its verification code.
type Verif struct {
	Email        string
	PasswordHash string
	Code         string
	Attempts     int
}

// Pending is the payload of a session waiting for the OAuth2 callback.
type Pending struct {
	Email        string
	PasswordHash string
	Verifier     string
	Redirect     string
}

// Done is the payload of a session that holds upstream tokens.
type Done struct {
	Email        string
	AccessToken  string
	RefreshToken string
}

// Errored carries no data.
type Errored struct{}

// Canceled carries no data.
type Canceled struct{}

func (Verif) State() State    { return StateVerif }
func (Pending) State() State  { return StatePending }
func (Done) State() State     { return StateDone }
func (Errored) State() State  { return StateErrored }
func (Canceled) State() State { return StateCanceled }

func (Verif) isPayload()    {}
func (Pending) isPayload()  {}
func (Done) isPayload()     {}
func (Errored) isPayload()  {}
func (Canceled) isPayload() {}

// Entry is one session in the store.
type Entry struct {
	Key     string
	Payload Payload
}

// State returns the state implied by the entry's payload.
func (e Entry) State() State {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.State()
}

// Summary is a secret-free view of an entry used for debug listings.
type Summary struct {
	Key      string
	State    State
	Email    string
	Attempts int
}

func summarize(e Entry) Summary {
	s := Summary{Key: e.Key, State: e.State()}
	switch p := e.Payload.(type) {
	case Verif:
		s.Email = p.Email
		s.Attempts = p.Attempts
	case Pending:
		s.Email = p.Email
	case Done:
		s.Email = p.Email
	}
	return s
}
