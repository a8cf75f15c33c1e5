package normalize

// Resolver dimensions consumed by the pipeline. The names match the sheet
// names of the reference workbook.
const (
	dimPropertyType = "real_estate_type_id"
	dimDemand       = "demand_id"
	dimProvince     = "province_id"
	dimDistrict     = "district_id"
	dimWard         = "ward_id"
	dimLegal        = "legal_document_id"
	dimCondition    = "condition_id"
	dimLocationType = "location_type_id"
	dimUtility      = "utility_id"
	dimSecurity     = "security_id"
	dimRoadType     = "road_type_id"
)

// keywordRule maps trigger keywords (matched against folded text) to the
// taxonomy label handed to the resolver. Rules are evaluated top to bottom;
// the first hit wins, so more specific triggers come first.
type keywordRule struct {
	keywords []string
	label    string
}

// propertyTypeRules classify the listing category from the URL slug and the
// title.
var propertyTypeRules = []keywordRule{
	{[]string{"can-ho", "can ho", "chung-cu", "chung cu"}, "Căn hộ chung cư"},
	{[]string{"biet-thu", "biet thu", "lien-ke", "lien ke"}, "Biệt thự, liền kề"},
	{[]string{"nha-mat-pho", "nha mat pho", "mat-pho"}, "Nhà mặt phố"},
	{[]string{"shophouse", "nha-pho-thuong-mai"}, "Shophouse, nhà phố thương mại"},
	{[]string{"nha-rieng", "nha rieng"}, "Nhà riêng"},
	{[]string{"van-phong", "van phong"}, "Văn phòng"},
	{[]string{"kho-nha-xuong", "nha xuong", "kho bai"}, "Kho, nhà xưởng"},
	{[]string{"trang-trai", "trang trai", "khu-nghi-duong", "nghi duong"}, "Trang trại, khu nghỉ dưỡng"},
	{[]string{"phong-tro", "phong tro", "nha-tro", "nha tro"}, "Nhà trọ, phòng trọ"},
	{[]string{"dat-nen", "dat nen", "dat-du-an"}, "Đất nền dự án"},
	{[]string{"ban-dat", "thue-dat", "lo dat", "dat tho cu", "dat o"}, "Đất"},
}

// demandRules classify the transaction side. Rental slugs carry "cho-thue",
// sale slugs "ban-"; the rental rule must come first because its URLs also
// contain property-type tokens.
var demandRules = []keywordRule{
	{[]string{"cho-thue", "cho thue", "thue"}, "Cho thuê"},
	{[]string{"sang-nhuong", "sang nhuong"}, "Sang nhượng"},
	{[]string{"ban-", "ban ", "can ban"}, "Bán"},
}

// legalRules classify the legal-document status from the spec table and the
// description.
var legalRules = []keywordRule{
	{[]string{"so do", "so hong", "so-do", "sodo"}, "Sổ đỏ/ Sổ hồng"},
	{[]string{"hop dong mua ban", "hop dong"}, "Hợp đồng mua bán"},
	{[]string{"dang cho so", "cho so", "chua co so"}, "Đang chờ sổ"},
	{[]string{"giay to viet tay", "viet tay"}, "Giấy tờ viết tay"},
}

// conditionRules classify the usage condition of the property.
var conditionRules = []keywordRule{
	{[]string{"full noi that", "noi that day du", "day du noi that"}, "Nội thất đầy đủ"},
	{[]string{"noi that cao cap"}, "Nội thất cao cấp"},
	{[]string{"noi that co ban"}, "Nội thất cơ bản"},
	{[]string{"nha moi", "moi xay", "moi 100"}, "Mới"},
	{[]string{"ban giao tho"}, "Bàn giao thô"},
}

// locationTypeRules classify the frontage situation.
var locationTypeRules = []keywordRule{
	{[]string{"mat tien", "mat pho", "mat duong"}, "Mặt tiền"},
	{[]string{"trong ngo", "trong hem", "ngo", "hem"}, "Trong ngõ/hẻm"},
	{[]string{"goc 2 mat", "lo goc", "can goc"}, "Lô góc"},
}

// utilityRules flag nearby amenities mentioned in the description.
var utilityRules = []keywordRule{
	{[]string{"gan truong", "truong hoc"}, "Gần trường học"},
	{[]string{"gan cho"}, "Gần chợ"},
	{[]string{"gan benh vien", "benh vien"}, "Gần bệnh viện"},
	{[]string{"cong vien"}, "Gần công viên"},
	{[]string{"sieu thi"}, "Gần siêu thị"},
}

// securityRules flag security-related phrases.
var securityRules = []keywordRule{
	{[]string{"bao ve 24", "bao ve"}, "Bảo vệ 24/24"},
	{[]string{"an ninh tot", "an ninh"}, "An ninh tốt"},
	{[]string{"camera"}, "Camera an ninh"},
}

// roadTypeRules classify the access road.
var roadTypeRules = []keywordRule{
	{[]string{"duong nhua", "duong trai nhua"}, "Đường nhựa"},
	{[]string{"duong be tong"}, "Đường bê tông"},
	{[]string{"o to tranh", "oto tranh"}, "Đường ô tô tránh nhau"},
	{[]string{"o to", "oto", "xe hoi"}, "Đường ô tô"},
	{[]string{"duong dat"}, "Đường đất"},
}

// Spec/config label keywords (folded) for the counted fields.
var (
	bedroomLabels  = []string{"phong ngu"}
	bathroomLabels = []string{"phong tam", "ve sinh", "toilet", "wc"}
	floorLabels    = []string{"so tang", "tang"}
	areaLabels     = []string{"dien tich"}
	priceLabels    = []string{"muc gia", "khoang gia", "gia"}
	legalLabels    = []string{"phap ly", "giay to phap ly"}
	postedLabels   = []string{"ngay dang"}
	expiredLabels  = []string{"ngay het han"}
)
