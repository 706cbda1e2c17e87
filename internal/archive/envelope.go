package archive

import "strconv"

// Envelope is the top-level structure of an archived export file. Exactly one
// of ExportedData and ExportedEvents is present in a well-formed file; the
// shape is decided once at parse time.
type Envelope struct {
	Name           string          `json:"_name"`
	Model          string          `json:"_model"`
	Timestamp      int64           `json:"_timestamp"`
	ExportedData   *ExportedData   `json:"ExportedData"`
	ExportedEvents *ExportedEvents `json:"ExportedEvents"`
}

type Header struct {
	SystemName string `json:"SystemName"`
	StartDate  string `json:"StartDate"`
	EndDate    string `json:"EndDate"`
}

type ExportedData struct {
	Header  Header       `json:"Header"`
	Objects []DataObject `json:"Objects"`
}

type ExportedEvents struct {
	Header  Header        `json:"Header"`
	Objects []EventObject `json:"Objects"`
}

// DataObject is one entry of a data-shape export. Id, Fullname and Time form
// the identity key; entries equal on those three are the same record no
// matter what the remaining fields say.
type DataObject struct {
	ID       *int64   `json:"Id"`
	Fullname string   `json:"Fullname"`
	Time     string   `json:"Time"`
	Value    *float64 `json:"Value"`
	Reason   *int     `json:"Reason"`
	State    string   `json:"State"`
	Quality  string   `json:"Quality"`
	Units    string   `json:"Units"`
}

type dataKey struct {
	id   string
	name string
	time string
}

func (o DataObject) key() dataKey {
	return dataKey{id: optInt(o.ID), name: o.Fullname, time: o.Time}
}

// EventObject is one entry of an events-shape export. Identity key is
// {Id, Fullname, RecordTime, SeqNo}; retransmissions share the first three
// and differ in SeqNo, so each sequence number counts as distinct.
type EventObject struct {
	ID             *int64 `json:"Id"`
	Fullname       string `json:"Fullname"`
	Severity       string `json:"Severity"`
	ReceiptTime    string `json:"ReceiptTime"`
	RecordTime     string `json:"RecordTime"`
	Category       string `json:"Category"`
	User           string `json:"User"`
	AreaOfInterest string `json:"AreaOfInterest"`
	AlarmState     string `json:"AlarmState"`
	Message        string `json:"Message"`
	EncodedMessage string `json:"EncodedMessage"`
	SeqNo          *int64 `json:"SeqNo"`
}

type eventKey struct {
	id         string
	name       string
	recordTime string
	seqNo      string
}

func (o EventObject) key() eventKey {
	return eventKey{
		id:         optInt(o.ID),
		name:       o.Fullname,
		recordTime: o.RecordTime,
		seqNo:      optInt(o.SeqNo),
	}
}

// optInt keeps an absent value distinct from an explicit zero.
func optInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}
