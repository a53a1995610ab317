package catalog

// rpmQuery selects the morph targets the stage needs from Ready Player Me
// model exports.
const rpmQuery = "?morphTargets=ARKit,Oculus+Visemes,mouthOpen,mouthSmile,eyesClosed,eyesLookUp,eyesLookDown&textureSizeLimit=1024&textureFormat=png"

// Builtin returns the shipped preset catalog.
func Builtin() *Catalog {
	avatars := []Avatar{
		{ID: "female-1", Name: "Sarah", Body: "F", URL: "https://models.readyplayer.me/64bfa15f0e72c63d7c3934a6.glb" + rpmQuery, Default: true},
		{ID: "female-2", Name: "Emma", Body: "F", URL: "https://models.readyplayer.me/6460717a4c6e8a55c44fee44.glb" + rpmQuery},
		{ID: "male-1", Name: "Michael", Body: "M", URL: "https://models.readyplayer.me/64606ea54c6e8a55c44fec7e.glb" + rpmQuery},
		{ID: "male-2", Name: "James", Body: "M", URL: "https://models.readyplayer.me/6460730c4c6e8a55c44fef95.glb" + rpmQuery},
		{ID: "female-3", Name: "Lisa", Body: "F", URL: "https://models.readyplayer.me/64607247d101a70e388e2927.glb" + rpmQuery},
		{ID: "male-3", Name: "David", Body: "M", URL: "https://models.readyplayer.me/64606f8bd101a70e388e26cc.glb" + rpmQuery},
	}

	backgrounds := []Background{
		{ID: "newsroom", Name: "Newsroom", URL: "https://images.unsplash.com/photo-1495020689067-958852a7765e?w=1920&q=80", Default: true},
		{ID: "city", Name: "City Skyline", URL: "https://images.unsplash.com/photo-1477959858617-67f85cf4f1df?w=1920&q=80"},
		{ID: "world-map", Name: "World Map", URL: "https://images.unsplash.com/photo-1526778548025-fa2f459cd5c1?w=1920&q=80"},
		{ID: "tech", Name: "Technology", URL: "https://images.unsplash.com/photo-1518770660439-4636190af475?w=1920&q=80"},
		{ID: "finance", Name: "Finance", URL: "https://images.unsplash.com/photo-1611974789855-9c2a0a7236a3?w=1920&q=80"},
		{ID: "abstract", Name: "Abstract", URL: "https://images.unsplash.com/photo-1557683316-973673baf926?w=1920&q=80"},
	}

	voices := []Voice{
		{ID: "af_bella", Name: "Bella (Female US)", Gender: "F", Default: true},
		{ID: "af_nicole", Name: "Nicole (Female US)", Gender: "F"},
		{ID: "af_sarah", Name: "Sarah (Female US)", Gender: "F"},
		{ID: "af_sky", Name: "Sky (Female US)", Gender: "F"},
		{ID: "am_adam", Name: "Adam (Male US)", Gender: "M"},
		{ID: "am_michael", Name: "Michael (Male US)", Gender: "M"},
		{ID: "am_fenrir", Name: "Fenrir (Male US)", Gender: "M"},
		{ID: "bf_emma", Name: "Emma (Female UK)", Gender: "F"},
		{ID: "bf_isabella", Name: "Isabella (Female UK)", Gender: "F"},
		{ID: "bm_george", Name: "George (Male UK)", Gender: "M"},
		{ID: "bm_lewis", Name: "Lewis (Male UK)", Gender: "M"},
	}

	c, err := New(avatars, backgrounds, voices)
	if err != nil {
		// The builtin tables are compile-time data; a validation failure here
		// is a programming error.
		panic(err)
	}
	return c
}
