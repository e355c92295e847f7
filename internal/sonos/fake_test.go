package sonos

import "time"

// fakeSpeaker is a scriptable in-memory Speaker used by the group and
// session tests.
type fakeSpeaker struct {
	info Info

	group    *Group
	groupFn  func() (*Group, error)
	groupErr error

	volume    int
	volumeErr error
	led       bool
	ledErr    error

	transports   []TransportInfo // successive TransportInfo results; the last repeats
	transportIdx int
	transportErr error
	position     PositionInfo
	positionErr  error

	played    []string
	playErr   error
	pauses    int
	seeks     []string
	seekErr   error
	joins     []string
	joinErr   error
	unjoins   int
	unjoinErr error

	setVolumes []int
	setLEDs    []bool
}

func newFakeSpeaker(name, uid string) *fakeSpeaker {
	return &fakeSpeaker{
		info: Info{Name: name, Address: "192.0.2.10", UID: uid},
		group: &Group{
			Coordinator: uid,
			Members:     []Member{{UUID: uid, ZoneName: name}},
		},
		volume:     25,
		led:        true,
		transports: []TransportInfo{{State: StateStopped}},
		position:   PositionInfo{RelTime: "0:00:00"},
	}
}

func (f *fakeSpeaker) Info() Info { return f.info }

func (f *fakeSpeaker) Volume() (int, error) {
	if f.volumeErr != nil {
		return 0, f.volumeErr
	}
	return f.volume, nil
}

func (f *fakeSpeaker) SetVolume(v int) error {
	if f.volumeErr != nil {
		return f.volumeErr
	}
	f.setVolumes = append(f.setVolumes, v)
	f.volume = v
	return nil
}

func (f *fakeSpeaker) StatusLight() (bool, error) {
	if f.ledErr != nil {
		return false, f.ledErr
	}
	return f.led, nil
}

func (f *fakeSpeaker) SetStatusLight(on bool) error {
	if f.ledErr != nil {
		return f.ledErr
	}
	f.setLEDs = append(f.setLEDs, on)
	f.led = on
	return nil
}

func (f *fakeSpeaker) TransportInfo() (TransportInfo, error) {
	if f.transportErr != nil {
		return TransportInfo{}, f.transportErr
	}
	idx := min(f.transportIdx, len(f.transports)-1)
	f.transportIdx++
	return f.transports[idx], nil
}

func (f *fakeSpeaker) PositionInfo() (PositionInfo, error) {
	if f.positionErr != nil {
		return PositionInfo{}, f.positionErr
	}
	return f.position, nil
}

func (f *fakeSpeaker) PlayURI(uri string) error {
	if f.playErr != nil {
		return f.playErr
	}
	f.played = append(f.played, uri)
	return nil
}

func (f *fakeSpeaker) Pause() error {
	f.pauses++
	return nil
}

func (f *fakeSpeaker) Seek(position string) error {
	if f.seekErr != nil {
		return f.seekErr
	}
	f.seeks = append(f.seeks, position)
	return nil
}

func (f *fakeSpeaker) Join(coordinatorUID string) error {
	if f.joinErr != nil {
		return f.joinErr
	}
	f.joins = append(f.joins, coordinatorUID)
	return nil
}

func (f *fakeSpeaker) Unjoin() error {
	f.unjoins++
	return f.unjoinErr
}

func (f *fakeSpeaker) Group() (*Group, error) {
	if f.groupFn != nil {
		return f.groupFn()
	}
	if f.groupErr != nil {
		return nil, f.groupErr
	}
	return f.group, nil
}

// sharedGroup puts every speaker into one group coordinated by the first.
func sharedGroup(speakers ...*fakeSpeaker) {
	g := &Group{Coordinator: speakers[0].info.UID}
	for _, sp := range speakers {
		g.Members = append(g.Members, Member{UUID: sp.info.UID, ZoneName: sp.info.Name})
	}
	for _, sp := range speakers {
		sp.group = g
	}
}

// testGrouper returns a Grouper with no settle delays.
func testGrouper() *Grouper {
	return &Grouper{}
}

// testSession returns a Session with near-zero timing.
func testSession() *Session {
	return &Session{PollInterval: time.Millisecond, MaxWait: 50 * time.Millisecond, RestoreDelay: 0}
}
