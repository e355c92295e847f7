package sonos

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/huin/goupnp"
	"github.com/huin/goupnp/dcps/av1"
	"github.com/huin/goupnp/soap"
)

const (
	zonePlayerTarget     = "urn:schemas-upnp-org:device:ZonePlayer:1"
	avTransportURN       = "urn:schemas-upnp-org:service:AVTransport:1"
	devicePropertiesURN  = "urn:schemas-upnp-org:service:DeviceProperties:1"
	zoneGroupTopologyURN = "urn:schemas-upnp-org:service:ZoneGroupTopology:1"
)

// Discover searches the local network for zone players for up to timeout.
// Zero results is not an error; the caller decides what an empty network
// means.
func Discover(ctx context.Context, timeout time.Duration) ([]Speaker, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results, err := goupnp.DiscoverDevicesCtx(ctx, zonePlayerTarget)
	if err != nil {
		return nil, fmt.Errorf("ssdp search: %w", err)
	}

	seen := make(map[string]bool, len(results))
	var speakers []Speaker
	for _, maybe := range results {
		if maybe.Err != nil {
			log.Debug("Skipping unresponsive device", "location", maybe.Location, "error", maybe.Err)
			continue
		}
		sp, err := newUPnPSpeaker(maybe.Root, maybe.Location)
		if err != nil {
			log.Debug("Skipping device", "location", maybe.Location, "error", err)
			continue
		}
		// Bonded pairs answer the search once per unit.
		if seen[sp.info.UID] {
			continue
		}
		seen[sp.info.UID] = true
		speakers = append(speakers, sp)
	}
	return speakers, nil
}

// upnpSpeaker drives a single zone player through its UPnP services:
// AVTransport and RenderingControl via goupnp's generated clients,
// DeviceProperties and ZoneGroupTopology via raw SOAP actions since they are
// Sonos extensions.
type upnpSpeaker struct {
	info      Info
	transport *av1.AVTransport1
	rendering *av1.RenderingControl1
	props     *soap.SOAPClient
	topology  *soap.SOAPClient
}

func newUPnPSpeaker(root *goupnp.RootDevice, loc *url.URL) (*upnpSpeaker, error) {
	transports, err := av1.NewAVTransport1ClientsFromRootDevice(root, loc)
	if err != nil {
		return nil, fmt.Errorf("avtransport client: %w", err)
	}
	renderers, err := av1.NewRenderingControl1ClientsFromRootDevice(root, loc)
	if err != nil {
		return nil, fmt.Errorf("renderingcontrol client: %w", err)
	}
	props, err := goupnp.NewServiceClientsFromRootDevice(root, loc, devicePropertiesURN)
	if err != nil {
		return nil, fmt.Errorf("deviceproperties client: %w", err)
	}
	topology, err := goupnp.NewServiceClientsFromRootDevice(root, loc, zoneGroupTopologyURN)
	if err != nil {
		return nil, fmt.Errorf("zonegrouptopology client: %w", err)
	}

	sp := &upnpSpeaker{
		info: Info{
			Address: loc.Hostname(),
			UID:     strings.TrimPrefix(root.Device.UDN, "uuid:"),
		},
		transport: transports[0],
		rendering: renderers[0],
		props:     props[0].SOAPClient,
		topology:  topology[0].SOAPClient,
	}

	// The UPnP FriendlyName embeds the IP and model; the room name the user
	// knows the speaker by comes from DeviceProperties.
	if name, err := sp.zoneName(); err == nil && name != "" {
		sp.info.Name = name
	} else {
		sp.info.Name = root.Device.FriendlyName
	}
	return sp, nil
}

func (s *upnpSpeaker) zoneName() (string, error) {
	request := &struct{}{}
	response := &struct {
		CurrentZoneName string
	}{}
	if err := s.props.PerformAction(devicePropertiesURN, "GetZoneAttributes", request, response); err != nil {
		return "", fmt.Errorf("get zone attributes: %w", err)
	}
	return response.CurrentZoneName, nil
}

func (s *upnpSpeaker) Info() Info { return s.info }

func (s *upnpSpeaker) Volume() (int, error) {
	v, err := s.rendering.GetVolume(0, "Master")
	if err != nil {
		return 0, fmt.Errorf("get volume: %w", err)
	}
	return int(v), nil
}

func (s *upnpSpeaker) SetVolume(v int) error {
	v = min(max(v, 0), 100)
	if err := s.rendering.SetVolume(0, "Master", uint16(v)); err != nil {
		return fmt.Errorf("set volume: %w", err)
	}
	return nil
}

func (s *upnpSpeaker) StatusLight() (bool, error) {
	request := &struct{}{}
	response := &struct {
		CurrentLEDState string
	}{}
	if err := s.props.PerformAction(devicePropertiesURN, "GetLEDState", request, response); err != nil {
		return false, fmt.Errorf("get led state: %w", err)
	}
	return response.CurrentLEDState == "On", nil
}

func (s *upnpSpeaker) SetStatusLight(on bool) error {
	state := "Off"
	if on {
		state = "On"
	}
	request := &struct {
		DesiredLEDState string
	}{DesiredLEDState: state}
	response := &struct{}{}
	if err := s.props.PerformAction(devicePropertiesURN, "SetLEDState", request, response); err != nil {
		return fmt.Errorf("set led state: %w", err)
	}
	return nil
}

func (s *upnpSpeaker) TransportInfo() (TransportInfo, error) {
	state, status, speed, err := s.transport.GetTransportInfo(0)
	if err != nil {
		return TransportInfo{}, fmt.Errorf("get transport info: %w", err)
	}
	return TransportInfo{State: state, Status: status, Speed: speed}, nil
}

func (s *upnpSpeaker) PositionInfo() (PositionInfo, error) {
	_, duration, _, trackURI, relTime, _, _, _, err := s.transport.GetPositionInfo(0)
	if err != nil {
		return PositionInfo{}, fmt.Errorf("get position info: %w", err)
	}
	return PositionInfo{TrackURI: trackURI, RelTime: relTime, Duration: duration}, nil
}

func (s *upnpSpeaker) PlayURI(uri string) error {
	if err := s.transport.SetAVTransportURI(0, uri, ""); err != nil {
		return fmt.Errorf("set transport uri: %w", err)
	}
	if err := s.transport.Play(0, "1"); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	return nil
}

func (s *upnpSpeaker) Pause() error {
	if err := s.transport.Pause(0); err != nil {
		return fmt.Errorf("pause: %w", err)
	}
	return nil
}

func (s *upnpSpeaker) Seek(position string) error {
	if err := s.transport.Seek(0, "REL_TIME", position); err != nil {
		return fmt.Errorf("seek to %s: %w", position, err)
	}
	return nil
}

// Join points this player's transport at the coordinator's group stream.
// The x-rincon URI scheme is how Sonos players reference each other.
func (s *upnpSpeaker) Join(coordinatorUID string) error {
	if err := s.transport.SetAVTransportURI(0, "x-rincon:"+coordinatorUID, ""); err != nil {
		return fmt.Errorf("join group: %w", err)
	}
	return nil
}

func (s *upnpSpeaker) Unjoin() error {
	request := &struct {
		InstanceID string
	}{InstanceID: "0"}
	response := &struct{}{}
	if err := s.transport.SOAPClient.PerformAction(avTransportURN, "BecomeCoordinatorOfStandaloneGroup", request, response); err != nil {
		return fmt.Errorf("leave group: %w", err)
	}
	return nil
}

func (s *upnpSpeaker) Group() (*Group, error) {
	request := &struct{}{}
	response := &struct {
		ZoneGroupState string
	}{}
	if err := s.topology.PerformAction(zoneGroupTopologyURN, "GetZoneGroupState", request, response); err != nil {
		return nil, fmt.Errorf("get zone group state: %w", err)
	}
	groups, err := ParseZoneGroupState(response.ZoneGroupState)
	if err != nil {
		return nil, err
	}
	for i := range groups {
		for _, m := range groups[i].Members {
			if m.UUID == s.info.UID {
				return &groups[i], nil
			}
		}
	}
	return nil, fmt.Errorf("player %s missing from zone group state", s.info.Name)
}
