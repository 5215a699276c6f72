package domain

const (
	ACTOR_ID_CHARGER = "charger"
)

type RunChargeCycleRequest struct {
	ActorRequestMixIn
	Trigger string
}

type RunChargeCycleResponse struct {
	ActorResponseMixIn
	Result *RunResult
}

type MorningCheckRequest struct {
	ActorRequestMixIn
	Trigger string
}

type MorningCheckResponse struct {
	ActorResponseMixIn
	Result *MorningCheckResult
}

type GetLastRunRequest struct {
	ActorRequestMixIn
}

type GetLastRunResponse struct {
	ActorResponseMixIn
	Result *RunResult
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
	Queued  int
}
