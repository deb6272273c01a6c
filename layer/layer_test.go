package layer

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/xrbridge/backend"
	"github.com/gogpu/xrbridge/backend/software"
	"github.com/gogpu/xrbridge/internal/xrmath"
)

func TestCanReuse(t *testing.T) {
	base := func() Descriptor {
		d := NewDescriptor(256, 128)
		d.Texture = fakeTexture{256, 128}
		return d
	}
	tests := []struct {
		name   string
		mutate func(*Descriptor)
		roles  Role
		want   bool
	}{
		{"identical", func(*Descriptor) {}, 0, true},
		{"transform only", func(d *Descriptor) { d.Transform.Translation.X = 300 }, 0, true},
		{"priority only", func(d *Descriptor) { d.Priority = 7 }, 0, true},
		{"format", func(d *Descriptor) { d.Format = gputypes.TextureFormatBGRA8Unorm }, 0, false},
		{"width", func(d *Descriptor) { d.Width = 512 }, 0, false},
		{"height", func(d *Descriptor) { d.Height = 64 }, 0, false},
		{"array size", func(d *Descriptor) { d.ArraySize = 2 }, 0, false},
		{"sample count", func(d *Descriptor) { d.SampleCount = 4 }, 0, false},
		{"roles", func(*Descriptor) {}, RoleSplash, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(1, base(), 0)
			d := base()
			tt.mutate(&d)
			b := New(1, d, tt.roles)
			if got := CanReuse(a, b); got != tt.want {
				t.Errorf("CanReuse() = %v, want %v", got, tt.want)
			}
		})
	}
	if CanReuse(nil, New(1, base(), 0)) {
		t.Error("CanReuse(nil, l) = true")
	}
}

func TestSwapchainDescTakesTextureSize(t *testing.T) {
	d := NewDescriptor(0, 0)
	d.Texture = fakeTexture{320, 240}
	sd := New(3, d, 0).SwapchainDesc()
	assert.Equal(t, uint32(320), sd.Width)
	assert.Equal(t, uint32(240), sd.Height)
	assert.True(t, sd.Static)
	assert.Equal(t, uint32(1), sd.FaceCount)

	d.Shape = Cubemap{}
	assert.Equal(t, uint32(6), New(3, d, 0).SwapchainDesc().FaceCount)
}

func TestSortForSubmission(t *testing.T) {
	mk := func(id ID, prio int32, roles Role, dist float32) *Layer {
		d := NewDescriptor(8, 8)
		d.Priority = prio
		d.Transform.Translation = xrmath.Vec3{X: dist}
		return New(id, d, roles)
	}
	layers := []*Layer{
		mk(7, 5, 0, 100),
		mk(4, 0, RoleBlackBackground, 100),
		mk(9, 0, RoleSplash, 0.5),
		mk(0, 99, RoleEye, 100),
		mk(2, 5, 0, 100),
		mk(8, 0, RoleSplash, 2),
		mk(3, -1, 0, 100),
	}
	SortForSubmission(layers)
	assert.Equal(t, []ID{0, 3, 4, 2, 7, 8, 9}, idsOf(layers))
}

func TestTableCopyOnWrite(t *testing.T) {
	table := NewTable(nil)
	id := table.Create(NewDescriptor(64, 64), 0)

	before := table.Snapshot()
	require.Len(t, before, 1)

	d, ok := table.Descriptor(id)
	require.True(t, ok)
	d.Width = 128
	d.Priority = 3
	require.NoError(t, table.SetDescriptor(id, d))

	assert.Equal(t, uint32(64), before[0].Descriptor().Width, "snapshot unaffected by later edits")
	after := table.Snapshot()
	assert.Equal(t, uint32(128), after[0].Descriptor().Width)
	assert.Equal(t, int32(3), after[0].Priority())

	err := table.SetDescriptor(99, d)
	assert.True(t, errors.Is(err, ErrLayerNotFound))
}

func TestTableEye(t *testing.T) {
	table := NewTable(nil)
	require.NoError(t, table.CreateEye(NewDescriptor(1024, 1024)))
	require.Error(t, table.CreateEye(NewDescriptor(1024, 1024)))

	l, ok := table.Layer(EyeLayerID)
	require.True(t, ok)
	assert.True(t, l.Is(RoleEye))
	assert.True(t, l.Descriptor().Has(ContinuousUpdate))
	assert.Equal(t, KindProjection, l.Descriptor().Shape.Kind())

	// Edits cannot clear the eye layer's continuous flag.
	d := l.Descriptor().WithFlags(ContinuousUpdate, false)
	require.NoError(t, table.SetDescriptor(EyeLayerID, d))
	l, _ = table.Layer(EyeLayerID)
	assert.True(t, l.Descriptor().Has(ContinuousUpdate))
}

func TestTableSnapshotUpdateFlags(t *testing.T) {
	table := NewTable(nil)

	static := NewDescriptor(16, 16)
	static.Texture = fakeTexture{16, 16}
	sid := table.Create(static, 0)

	cont := static.WithFlags(ContinuousUpdate, true)
	cid := table.Create(cont, 0)

	empty := NewDescriptor(16, 16).WithFlags(ContinuousUpdate, true)
	eid := table.Create(empty, 0)

	flags := func() map[ID]bool {
		m := map[ID]bool{}
		for _, l := range table.Snapshot() {
			m[l.ID()] = l.UpdateTexture()
		}
		return m
	}

	assert.Equal(t, map[ID]bool{sid: false, cid: true, eid: false}, flags())

	require.True(t, table.MarkTextureForUpdate(sid))
	assert.False(t, table.MarkTextureForUpdate(1000))
	assert.Equal(t, map[ID]bool{sid: true, cid: true, eid: false}, flags())
	assert.Equal(t, map[ID]bool{sid: false, cid: true, eid: false}, flags(), "marks are consumed")
}

func TestTableDestroyAndRoles(t *testing.T) {
	ids := NewIDAllocator()
	table := NewTable(ids)
	a := table.Create(NewDescriptor(8, 8), RoleMRC)
	b := table.Create(NewDescriptor(8, 8), 0)
	c := table.Create(NewDescriptor(8, 8), RoleMRC)

	assert.Same(t, ids, table.IDs())
	assert.Equal(t, []ID{a, b, c}, table.SortedIDs())
	assert.Equal(t, []ID{a, c}, table.WithRole(RoleMRC))

	assert.True(t, table.Destroy(a))
	assert.False(t, table.Destroy(a))
	assert.Equal(t, []ID{b, c}, table.SortedIDs())

	// Ids are never reused.
	d := table.Create(NewDescriptor(8, 8), 0)
	assert.True(t, d > c, "new id %d after %d", d, c)
}

func TestRoleString(t *testing.T) {
	assert.Equal(t, "quad", Role(0).String())
	assert.Equal(t, "eye", RoleEye.String())
	assert.Equal(t, "splash|black", (RoleSplash | RoleBlackBackground).String())
}

// ringSwapchain is a swapchain backed by software textures.
type ringSwapchain struct {
	idx    int
	images []backend.Texture
}

func (s *ringSwapchain) Index() int                  { return s.idx }
func (s *ringSwapchain) Len() int                    { return len(s.images) }
func (s *ringSwapchain) Advance()                    { s.idx = (s.idx + 1) % len(s.images) }
func (s *ringSwapchain) Image(i int) backend.Texture { return s.images[i] }
func (s *ringSwapchain) Release()                    {}

type softAllocator struct{ b *software.Backend }

func (a softAllocator) CreateSwapchain(d SwapchainDesc) (Swapchain, error) {
	sc := &ringSwapchain{}
	for range 3 {
		tex, err := a.b.AllocateRenderTarget(backend.TextureDesc{
			Label: d.Label, Width: d.Width, Height: d.Height, Format: d.Format,
		})
		if err != nil {
			return nil, err
		}
		sc.images = append(sc.images, tex)
	}
	return sc, nil
}

func solid(w, h int, c color.RGBA) *software.Texture {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return software.NewTexture(img)
}

func pixel(tex backend.Texture) color.RGBA {
	return tex.(*software.Texture).Slice(0).RGBAAt(0, 0)
}

func TestCopyContentsFillsFreshRing(t *testing.T) {
	b := software.New()
	red := color.RGBA{R: 255, A: 255}

	d := NewDescriptor(4, 4)
	d.Texture = solid(4, 4, red)
	l := New(1, d, 0)
	require.True(t, l.Initialize(softAllocator{b}, nil, nil))

	require.NoError(t, l.CopyContents(b))
	sc := l.Swapchain()
	for i := range sc.Len() {
		assert.Equal(t, red, pixel(sc.Image(i)), "slot %d", i)
	}
	assert.Equal(t, uint64(3), b.Stats().Blits)

	// A static layer without a mark copies nothing more.
	next := l.Clone()
	require.NoError(t, next.CopyContents(b))
	assert.Equal(t, uint64(3), b.Stats().Blits)
}

func TestCopyContentsWritesNextSlot(t *testing.T) {
	b := software.New()
	d := NewDescriptor(4, 4).WithFlags(ContinuousUpdate, true)
	d.Texture = solid(4, 4, color.RGBA{G: 255, A: 255})

	table := NewTable(nil)
	id := table.Create(d, 0)
	first := table.Snapshot()[0]
	require.True(t, first.Initialize(softAllocator{b}, nil, nil))
	require.NoError(t, first.CopyContents(b))

	blue := color.RGBA{B: 255, A: 255}
	d.Texture = solid(4, 4, blue)
	require.NoError(t, table.SetDescriptor(id, d))
	second := table.Snapshot()[0]
	require.True(t, second.Initialize(softAllocator{b}, first, func(*Layer) { t.Fatal("unexpected retire") }))
	require.NoError(t, second.CopyContents(b))

	sc := second.Swapchain()
	assert.Equal(t, blue, pixel(sc.Image((sc.Index()+1)%sc.Len())))
	assert.Equal(t, color.RGBA{G: 255, A: 255}, pixel(sc.Image(sc.Index())), "current image untouched")
}

func TestCopyContentsBlackLayer(t *testing.T) {
	b := software.New()
	l := New(2, NewDescriptor(4, 4), RoleBlackBackground)
	require.True(t, l.Initialize(softAllocator{b}, nil, nil))
	require.NoError(t, l.CopyContents(b))
	for i := range l.Swapchain().Len() {
		assert.Equal(t, color.RGBA{A: 255}, pixel(l.Swapchain().Image(i)))
	}
}

func TestInitializeWithoutTexture(t *testing.T) {
	l := New(4, NewDescriptor(4, 4), 0)
	assert.False(t, l.Initialize(softAllocator{software.New()}, nil, nil))
	assert.Nil(t, l.Swapchain())
	assert.False(t, l.Visible())
}
