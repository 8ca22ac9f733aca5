// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package logs

import (
	"math"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/godwokenrises/godwoken-sub004/api/utils"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/logdb"
)

type Logs struct {
	logDB *logdb.LogDB
	limit uint64
}

func New(logDB *logdb.LogDB, limit uint64) *Logs {
	return &Logs{
		logDB,
		limit,
	}
}

func (l *Logs) convertFilter(req *FilterRequest) (*logdb.LogFilter, error) {
	filter := &logdb.LogFilter{
		TxHash:  req.TxHash,
		Options: &logdb.Options{Limit: l.limit},
	}
	switch req.Order {
	case "", logdb.ASC:
		filter.Order = logdb.ASC
	case logdb.DESC:
		filter.Order = logdb.DESC
	default:
		return nil, errors.Errorf("order: unknown %q", req.Order)
	}
	if req.Range != nil {
		filter.Range = &logdb.Range{From: req.Range.From, To: math.MaxUint64}
		if req.Range.To != nil {
			if *req.Range.To < req.Range.From {
				return nil, errors.New("range: to before from")
			}
			filter.Range.To = *req.Range.To
		}
	}
	if req.Options != nil {
		if req.Options.Limit > l.limit {
			return nil, errors.Errorf("options.limit exceeds the maximum allowed value of %d", l.limit)
		}
		filter.Options.Offset = req.Options.Offset
		if req.Options.Limit > 0 {
			filter.Options.Limit = req.Options.Limit
		}
	}
	for _, c := range req.CriteriaSet {
		filter.CriteriaSet = append(filter.CriteriaSet, &logdb.LogCriteria{
			AccountID:   c.AccountID,
			ServiceFlag: c.ServiceFlag,
		})
	}
	return filter, nil
}

func (l *Logs) respond(w http.ResponseWriter, req *http.Request, body *FilterRequest) error {
	filter, err := l.convertFilter(body)
	if err != nil {
		return utils.BadRequest(err)
	}
	logs, err := l.logDB.FilterLogs(req.Context(), filter)
	if err != nil {
		return err
	}
	result := make([]*FilteredLog, 0, len(logs))
	for _, log := range logs {
		result = append(result, convertLog(log))
	}
	return utils.WriteJSON(w, result)
}

// parseQuery builds a filter with a single criteria from url query values.
func parseQuery(query url.Values) (*FilterRequest, error) {
	var (
		body     FilterRequest
		criteria Criteria
	)
	if s := query.Get("account"); s != "" {
		id, err := utils.StringToUint32(s, 0)
		if err != nil {
			return nil, errors.WithMessage(err, "account")
		}
		criteria.AccountID = &id
	}
	if s := query.Get("flag"); s != "" {
		flag, err := utils.StringToUint32(s, 0)
		if err != nil || flag > 0xff {
			return nil, errors.New("flag: should be a byte")
		}
		b := byte(flag)
		criteria.ServiceFlag = &b
	}
	if criteria.AccountID != nil || criteria.ServiceFlag != nil {
		body.CriteriaSet = []*Criteria{&criteria}
	}
	if s := query.Get("tx"); s != "" {
		hash, err := gw.ParseBytes32(s)
		if err != nil {
			return nil, errors.WithMessage(err, "tx")
		}
		body.TxHash = &hash
	}
	from, to := query.Get("from"), query.Get("to")
	if from != "" || to != "" {
		body.Range = &Range{}
		if from != "" {
			n, err := utils.StringToUint64(from)
			if err != nil {
				return nil, errors.WithMessage(err, "from")
			}
			body.Range.From = n
		}
		if to != "" {
			n, err := utils.StringToUint64(to)
			if err != nil {
				return nil, errors.WithMessage(err, "to")
			}
			body.Range.To = &n
		}
	}
	offset, limit := query.Get("offset"), query.Get("limit")
	if offset != "" || limit != "" {
		body.Options = &Options{}
		if offset != "" {
			n, err := utils.StringToUint64(offset)
			if err != nil {
				return nil, errors.WithMessage(err, "offset")
			}
			body.Options.Offset = n
		}
		if limit != "" {
			n, err := utils.StringToUint64(limit)
			if err != nil {
				return nil, errors.WithMessage(err, "limit")
			}
			body.Options.Limit = n
		}
	}
	body.Order = logdb.Order(query.Get("order"))
	return &body, nil
}

func (l *Logs) handleQueryLogs(w http.ResponseWriter, req *http.Request) error {
	body, err := parseQuery(req.URL.Query())
	if err != nil {
		return utils.BadRequest(err)
	}
	return l.respond(w, req, body)
}

func (l *Logs) handleFilterLogs(w http.ResponseWriter, req *http.Request) error {
	var body FilterRequest
	if err := utils.ParseJSON(req.Body, &body); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	return l.respond(w, req, &body)
}

func (l *Logs) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").Methods(http.MethodGet).HandlerFunc(utils.WrapHandlerFunc(l.handleQueryLogs))
	sub.Path("").Methods(http.MethodPost).HandlerFunc(utils.WrapHandlerFunc(l.handleFilterLogs))
}
