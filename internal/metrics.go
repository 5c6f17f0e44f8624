package internal

import "expvar"

var (
	requestsTotal       = expvar.NewMap("hookgate_requests_total")
	verifyFailuresTotal = expvar.NewMap("hookgate_verify_failures_total")
	skipsTotal          = expvar.NewMap("hookgate_skips_total")
	acceptsTotal        = expvar.NewMap("hookgate_accepts_total")
	publishErrors       = expvar.NewMap("hookgate_publish_errors_total")
	exchangesTotal      = expvar.NewMap("hookgate_credential_exchanges_total")
)

func IncRequest(integration string) {
	requestsTotal.Add(integration, 1)
}

func IncVerifyFailure(integration string) {
	verifyFailuresTotal.Add(integration, 1)
}

func IncSkip(integration string) {
	skipsTotal.Add(integration, 1)
}

func IncAccept(integration string) {
	acceptsTotal.Add(integration, 1)
}

func IncPublishError(driver string) {
	publishErrors.Add(driver, 1)
}

func IncExchange(scope string) {
	exchangesTotal.Add(scope, 1)
}
