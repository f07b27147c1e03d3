package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"testing"

	"autocomplete/internal/models"
	"autocomplete/internal/urls"
)

func TestQueryModeFiltersAndOrders(t *testing.T) {
	for _, ns := range sources(t, fruit) {
		t.Run(ns.name, func(t *testing.T) {
			ch := fruitChannel(t, ns.src, Options{})
			bound := ch.InitForRequest(NewRequest(url.Values{"q": {"ap"}}))
			got, err := bound.GetResults(context.Background(), nil)
			if err != nil {
				t.Fatalf("GetResults: %v", err)
			}
			if want := []string{"Apple", "Grape"}; !equal(names(got), want) {
				t.Fatalf("got %v want %v", names(got), want)
			}
		})
	}
}

func TestValuesTakePrecedenceOverQuery(t *testing.T) {
	for _, ns := range sources(t, fruit) {
		t.Run(ns.name, func(t *testing.T) {
			ch := fruitChannel(t, ns.src, Options{})
			bound := ch.InitForRequest(NewRequest(url.Values{"q": {"ap"}}))
			got, err := bound.GetResults(context.Background(), []string{"2"})
			if err != nil {
				t.Fatalf("GetResults: %v", err)
			}
			if want := []string{"Banana"}; !equal(names(got), want) {
				t.Fatalf("got %v want %v", names(got), want)
			}
			// empty but non-nil values is still identifier mode
			got, err = bound.GetResults(context.Background(), []string{})
			if err != nil || len(got) != 0 {
				t.Fatalf("expected no results for empty values, got %v (%v)", names(got), err)
			}
		})
	}
}

func TestNoRequestReturnsOrderedQueryset(t *testing.T) {
	for _, ns := range sources(t, fruit) {
		t.Run(ns.name, func(t *testing.T) {
			ch := fruitChannel(t, ns.src, Options{})
			got, err := ch.GetResults(context.Background(), nil, nil)
			if err != nil {
				t.Fatalf("GetResults: %v", err)
			}
			// Naples is a city and stays out of the fruit channel
			if want := []string{"Apple", "Banana", "Grape"}; !equal(names(got), want) {
				t.Fatalf("got %v want %v", names(got), want)
			}
		})
	}
}

func TestEmptyOrMissingQueryIsIdentity(t *testing.T) {
	for _, ns := range sources(t, fruit) {
		t.Run(ns.name, func(t *testing.T) {
			ch := fruitChannel(t, ns.src, Options{})
			for _, params := range []url.Values{{}, {"q": {""}}, {"other": {"ap"}}} {
				got, err := ch.GetResults(context.Background(), NewRequest(params), nil)
				if err != nil {
					t.Fatalf("GetResults: %v", err)
				}
				if len(got) != 3 {
					t.Fatalf("params %v: expected unfiltered set, got %v", params, names(got))
				}
			}
		})
	}
}

func TestWhitespaceQueryIsLiteral(t *testing.T) {
	recs := append([]models.Record{{ID: "20", Kind: "fruit", Name: "Passion fruit"}}, fruit...)
	for _, ns := range sources(t, recs) {
		t.Run(ns.name, func(t *testing.T) {
			ch := fruitChannel(t, ns.src, Options{})
			got, err := ch.GetResults(context.Background(), NewRequest(url.Values{"q": {" "}}), nil)
			if err != nil {
				t.Fatalf("GetResults: %v", err)
			}
			if want := []string{"Passion fruit"}; !equal(names(got), want) {
				t.Fatalf("got %v want %v", names(got), want)
			}
		})
	}
}

func TestLimitIsHardCap(t *testing.T) {
	var recs []models.Record
	for i := 0; i < 30; i++ {
		recs = append(recs, models.Record{ID: fmt.Sprintf("r%02d", i), Kind: "fruit", Name: fmt.Sprintf("Berry %02d", i)})
	}
	for _, ns := range sources(t, recs) {
		t.Run(ns.name, func(t *testing.T) {
			ch := fruitChannel(t, ns.src, Options{})
			if ch.LimitResults() != DefaultLimit {
				t.Fatalf("expected default limit %d, got %d", DefaultLimit, ch.LimitResults())
			}
			got, err := ch.GetResults(context.Background(), NewRequest(url.Values{"q": {"berry"}}), nil)
			if err != nil {
				t.Fatalf("GetResults: %v", err)
			}
			if len(got) != DefaultLimit || got[0].Name != "Berry 00" {
				t.Fatalf("expected first %d berries, got %v", DefaultLimit, names(got))
			}
			small := fruitChannel(t, ns.src, Options{LimitResults: 5})
			ids := make([]string, 0, len(recs))
			for _, r := range recs {
				ids = append(ids, r.ID)
			}
			got, err = small.GetResults(context.Background(), nil, ids)
			if err != nil || len(got) != 5 {
				t.Fatalf("values mode must be capped too, got %d (%v)", len(got), err)
			}
		})
	}
}

func TestValuesFilterExact(t *testing.T) {
	for _, ns := range sources(t, fruit) {
		t.Run(ns.name, func(t *testing.T) {
			ch := fruitChannel(t, ns.src, Options{})
			set := ch.ValuesFilter(ch.Backend().Queryset(), []string{"3", "1"})
			got, err := ch.Backend().OrderResults(set).Records(context.Background())
			if err != nil {
				t.Fatalf("Records: %v", err)
			}
			if want := []string{"Apple", "Grape"}; !equal(names(got), want) {
				t.Fatalf("got %v want %v", names(got), want)
			}
		})
	}
}

func TestOrderResultsIdempotent(t *testing.T) {
	recs := append([]models.Record{{ID: "0", Kind: "fruit", Name: "Grape"}}, fruit...)
	for _, ns := range sources(t, recs) {
		t.Run(ns.name, func(t *testing.T) {
			ch := fruitChannel(t, ns.src, Options{})
			b := ch.Backend()
			once, err := b.OrderResults(b.Queryset()).Records(context.Background())
			if err != nil {
				t.Fatalf("Records: %v", err)
			}
			twice, err := b.OrderResults(b.OrderResults(b.Queryset())).Records(context.Background())
			if err != nil {
				t.Fatalf("Records: %v", err)
			}
			if fmt.Sprint(once) != fmt.Sprint(twice) {
				t.Fatalf("ordering not idempotent:\n%v\n%v", once, twice)
			}
			// ties on name break by id
			if once[2].ID != "0" || once[3].ID != "3" {
				t.Fatalf("unexpected tie order: %+v", once)
			}
		})
	}
}

func TestAreValid(t *testing.T) {
	cases := []struct {
		values []string
		want   bool
	}{
		{[]string{}, true},
		{nil, true},
		{[]string{"1"}, true},
		{[]string{"1", "2", "3"}, true},
		{[]string{"1", "1"}, false},
		{[]string{"1", "999"}, false},
		{[]string{"10"}, false}, // exists, but not in this channel's queryset
	}
	for _, ns := range sources(t, fruit) {
		t.Run(ns.name, func(t *testing.T) {
			ch := fruitChannel(t, ns.src, Options{})
			for _, tc := range cases {
				got, err := ch.AreValid(context.Background(), tc.values)
				if err != nil {
					t.Fatalf("AreValid(%v): %v", tc.values, err)
				}
				if got != tc.want {
					t.Fatalf("AreValid(%v)=%v want %v", tc.values, got, tc.want)
				}
			}
		})
	}
}

func TestDataSourceErrorsPropagate(t *testing.T) {
	ch, err := NewModelTemplate("FruitChannel", brokenSource{}, "fruit", "", testRenderer(t), nil, Options{})
	if err != nil {
		t.Fatalf("NewModelTemplate: %v", err)
	}
	if _, err := ch.GetResults(context.Background(), nil, nil); !errors.Is(err, errUnreachable) {
		t.Fatalf("GetResults: expected unreachable error, got %v", err)
	}
	if _, err := ch.AreValid(context.Background(), []string{"1"}); !errors.Is(err, errUnreachable) {
		t.Fatalf("AreValid: expected unreachable error, got %v", err)
	}
}

func TestAsDictKeys(t *testing.T) {
	ch := fruitChannel(t, sources(t, fruit)[0].src, Options{})
	info, err := ch.AsDict()
	if err != nil {
		t.Fatalf("AsDict: %v", err)
	}
	b, _ := json.Marshal(info)
	var m map[string]string
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(m) != 2 || m["name"] != "FruitChannel" || m["url"] != "/channel/FruitChannel/" {
		t.Fatalf("unexpected as_dict: %v", m)
	}
}

func TestGetAbsoluteURLUsesResolver(t *testing.T) {
	r := urls.New("/ac")
	ch, err := NewModelTemplate("FruitChannel", sources(t, fruit)[0].src, "fruit", "", testRenderer(t), r, Options{})
	if err != nil {
		t.Fatalf("NewModelTemplate: %v", err)
	}
	u, err := ch.GetAbsoluteURL()
	if err != nil || u != "/ac/channel/FruitChannel/" {
		t.Fatalf("got %q (%v)", u, err)
	}
	r.Handle(urls.ChannelRoute, "/c/{}/{}/")
	if _, err := ch.GetAbsoluteURL(); !errors.Is(err, urls.ErrArgs) {
		t.Fatalf("expected resolver error, got %v", err)
	}
}

func TestOptionsDefaults(t *testing.T) {
	ch := fruitChannel(t, sources(t, fruit)[0].src, Options{StaticList: []string{"/static/a.js"}})
	if ch.Bootstrap() != DefaultBootstrap || ch.Placeholder() != DefaultPlaceholder {
		t.Fatalf("unexpected defaults: %q %q", ch.Bootstrap(), ch.Placeholder())
	}
	static := ch.StaticList()
	static[0] = "mutated"
	if ch.StaticList()[0] != "/static/a.js" {
		t.Fatalf("static list leaked internal state")
	}
	w, err := ch.Describe()
	if err != nil || w.Limit != DefaultLimit || w.Bootstrap != "normal" || len(w.Static) != 1 {
		t.Fatalf("unexpected widget %+v (%v)", w, err)
	}
}

func TestNewValidates(t *testing.T) {
	src := sources(t, fruit)[0].src
	b, _ := NewModelBackend(src, "fruit", "")
	f := NewTemplateFrontend(testRenderer(t))
	if _, err := New("", b, f, nil, Options{}); !errors.Is(err, ErrNoName) {
		t.Fatalf("expected ErrNoName, got %v", err)
	}
	if _, err := New("X", nil, f, nil, Options{}); !errors.Is(err, ErrNoBackend) {
		t.Fatalf("expected ErrNoBackend, got %v", err)
	}
	if _, err := New("X", b, nil, nil, Options{}); !errors.Is(err, ErrNoFrontend) {
		t.Fatalf("expected ErrNoFrontend, got %v", err)
	}
	if _, err := New("X", b, NewTemplateFrontend(nil), nil, Options{}); !errors.Is(err, ErrNoRenderer) {
		t.Fatalf("expected ErrNoRenderer, got %v", err)
	}
}

func TestInitForRequestIsIndependent(t *testing.T) {
	ch := fruitChannel(t, sources(t, fruit)[0].src, Options{})
	first := ch.InitForRequest(NewRequest(url.Values{"q": {"ban"}}))
	second := ch.InitForRequest(NewRequest(url.Values{"q": {"gra"}}))
	a, _ := first.GetResults(context.Background(), nil)
	b, _ := second.GetResults(context.Background(), nil)
	if !equal(names(a), []string{"Banana"}) || !equal(names(b), []string{"Grape"}) {
		t.Fatalf("bindings interfered: %v %v", names(a), names(b))
	}
	if second.Channel() != ch || second.Request().Query() != "gra" {
		t.Fatalf("binding lost its channel or request")
	}
}

func TestConcurrentRequestsDoNotInterfere(t *testing.T) {
	for _, ns := range sources(t, fruit) {
		t.Run(ns.name, func(t *testing.T) {
			ch := fruitChannel(t, ns.src, Options{})
			queries := map[string]string{"app": "Apple", "nan": "Banana", "rap": "Grape"}
			var wg sync.WaitGroup
			errs := make(chan error, 3*20)
			for i := 0; i < 20; i++ {
				for q, want := range queries {
					wg.Add(1)
					go func(q, want string) {
						defer wg.Done()
						got, err := ch.InitForRequest(NewRequest(url.Values{"q": {q}})).GetResults(context.Background(), nil)
						if err != nil {
							errs <- err
							return
						}
						if len(got) != 1 || got[0].Name != want {
							errs <- fmt.Errorf("q=%s got %v", q, names(got))
						}
					}(q, want)
				}
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				t.Fatal(err)
			}
		})
	}
}
