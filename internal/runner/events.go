package runner

import "github.com/hperssn/pulse/internal/domain"

type envelope struct {
	event any
	done  chan error
}

type sampleArrived struct {
	gen    uint64
	sample domain.Sample
}

type tickElapsed struct {
	gen uint64
	seq uint64
}

type sensorFailed struct {
	gen uint64
	err error
}

type startCommand struct {
	wearer string
}

type stopCommand struct{}

type toggleCommand struct {
	wearer string
}

type accessGranted struct {
	sensor bool
	notify bool
}

type snapshotQuery struct {
	out *domain.Session
}
