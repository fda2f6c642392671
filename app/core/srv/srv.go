package srv

type Srv struct {
	ai *AI
}

type ApplyFunc func(*Srv)

func SetupSrvs(opts ...ApplyFunc) *Srv {
	srv := &Srv{}
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}

func (s *Srv) AI() *AI {
	return s.ai
}
