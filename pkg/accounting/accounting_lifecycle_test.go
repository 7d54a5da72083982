package accounting_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mpd-project/mpd/pkg/accounting"
	"github.com/mpd-project/mpd/pkg/authdata"
	"github.com/mpd-project/mpd/pkg/authparams"
	"github.com/mpd-project/mpd/pkg/precheck"
	"github.com/mpd-project/mpd/pkg/registry"
	"github.com/mpd-project/mpd/pkg/worker"
)

type recordingBackend struct {
	mu     sync.Mutex
	events []authdata.AcctType
}

func (b *recordingBackend) Name() string { return "recording" }

func (b *recordingBackend) Run(_ context.Context, data *authdata.Data) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, data.AcctType)
	return nil
}

func (b *recordingBackend) seen() []authdata.AcctType {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]authdata.AcctType(nil), b.events...)
}

type fakeLink struct {
	mu     sync.Mutex
	params *authparams.Params
}

func (l *fakeLink) ApplyParams(data *authdata.Data) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.params = data.Params
}

func newAccountant(backend *recordingBackend, conf accounting.Config) *accounting.Accountant {
	links := registry.New[worker.LinkTarget]()
	links.Put(1, &fakeLink{})

	runner := &worker.Runner{
		Gate:  &precheck.Gate{},
		Chain: &accounting.ParallelChain{Backends: []accounting.Backend{backend}},
		Links: links,
	}

	return &accounting.Accountant{
		LinkID: 1,
		Conf:   conf,
		Runner: runner,
	}
}

var _ = Describe("Session Accountant", func() {
	var backend *recordingBackend
	var params *authparams.Params

	BeforeEach(func() {
		backend = &recordingBackend{}
		params = &authparams.Params{Authname: "alice"}
	})

	It("dispatches Start immediately", func() {
		a := newAccountant(backend, accounting.Config{})
		a.Start(context.Background(), authdata.LinkSnapshot{}, params)

		Eventually(backend.seen).Should(Equal([]authdata.AcctType{authdata.AcctStart}))
	})

	It("dispatches Update once the octet delta clears the suppression threshold", func() {
		params.AcctUpdate = 1 // seconds
		a := newAccountant(backend, accounting.Config{LimitRecv: 10, LimitXmit: 10})
		a.Start(context.Background(), authdata.LinkSnapshot{RecvOctets: 0, XmitOctets: 0}, params)
		Eventually(backend.seen).Should(HaveLen(1))

		a.UpdateSnapshot(authdata.LinkSnapshot{RecvOctets: 50, XmitOctets: 50})
		Eventually(backend.seen, "2s", "50ms").Should(ContainElement(authdata.AcctUpdate))
		a.Stop(context.Background(), params)
	})

	It("suppresses Update when the octet delta stays under both thresholds", func() {
		params.AcctUpdate = 1 // seconds
		a := newAccountant(backend, accounting.Config{LimitRecv: 1 << 30, LimitXmit: 1 << 30})
		a.Start(context.Background(), authdata.LinkSnapshot{RecvOctets: 0, XmitOctets: 0}, params)
		Eventually(backend.seen).Should(HaveLen(1))

		a.UpdateSnapshot(authdata.LinkSnapshot{RecvOctets: 1, XmitOctets: 1})
		Consistently(backend.seen, "300ms", "50ms").ShouldNot(ContainElement(authdata.AcctUpdate))
		a.Stop(context.Background(), params)
	})

	It("never suppresses the final Stop dispatch", func() {
		a := newAccountant(backend, accounting.Config{LimitRecv: 1 << 30, LimitXmit: 1 << 30})
		a.Start(context.Background(), authdata.LinkSnapshot{}, params)
		Eventually(backend.seen).Should(HaveLen(1))

		a.Stop(context.Background(), params)

		Eventually(backend.seen).Should(Equal([]authdata.AcctType{authdata.AcctStart, authdata.AcctStop}))
	})

	It("arms a periodic timer from AuthParams.AcctUpdate in preference to the per-link config", func() {
		params.AcctUpdate = 1 // seconds; per-AuthParams value takes precedence (spec.md §4.7)
		a := newAccountant(backend, accounting.Config{UpdateInterval: time.Hour})
		a.Start(context.Background(), authdata.LinkSnapshot{RecvOctets: 1000, XmitOctets: 1000}, params)
		Eventually(backend.seen).Should(HaveLen(1))

		Eventually(backend.seen, "2s", "50ms").Should(ContainElement(authdata.AcctUpdate))
		a.Stop(context.Background(), params)
	})
})
