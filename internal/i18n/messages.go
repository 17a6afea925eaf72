package i18n

// arabic maps every English message key to its Arabic translation.
var arabic = map[string]string{
	"authentication required":                           "يلزم تسجيل الدخول",
	"you do not have permission to perform this action": "ليس لديك صلاحية لتنفيذ هذا الإجراء",
	"invalid input":                                     "مدخلات غير صالحة",
	"no student profile is linked to this account":      "لا يوجد ملف طالب مرتبط بهذا الحساب",
	"internal server error":                             "خطأ داخلي في الخادم",
	"student not found":                                 "الطالب غير موجود",
	"group not found":                                   "المجموعة غير موجودة",
	"booking not found":                                 "الحجز غير موجود",
	"user not found":                                    "المستخدم غير موجود",
	"student is already booked in this group":           "الطالب محجوز بالفعل في هذه المجموعة",
	"group is full":                                     "المجموعة ممتلئة",
	"capacity cannot be lower than the number of booked students": "لا يمكن أن تكون السعة أقل من عدد الطلاب المحجوزين",
	"a student profile already exists for this user":              "يوجد ملف طالب لهذا المستخدم بالفعل",
	"a group with this name already exists":                       "توجد مجموعة بهذا الاسم بالفعل",
	"username already exists":                                     "اسم المستخدم موجود بالفعل",
	"email already exists":                                        "البريد الإلكتروني موجود بالفعل",
	"invalid username or password":                                "اسم المستخدم أو كلمة المرور غير صحيحة",
	"invalid or expired refresh token":                            "رمز التحديث غير صالح أو منتهي الصلاحية",
	"invalid or expired reset token":                              "رمز إعادة التعيين غير صالح أو منتهي الصلاحية",
	"invalid token":                                               "رمز غير صالح",
	"user account is disabled":                                    "حساب المستخدم معطل",
	"validation failed":                                           "فشل التحقق من البيانات",
	"invalid request body":                                        "محتوى الطلب غير صالح",
	"invalid id":                                                  "معرف غير صالح",
	"invalid ordering":                                            "ترتيب غير صالح",
	"invalid filter":                                              "عامل تصفية غير صالح",
	"joined group":                                                "تم الانضمام إلى المجموعة",
	"left group":                                                  "تمت مغادرة المجموعة",
	"not a member of this group":                                  "لست عضوًا في هذه المجموعة",
	"booking canceled":                                            "تم إلغاء الحجز",
	"if the email exists, a reset link has been sent":             "إذا كان البريد الإلكتروني موجودًا، فقد تم إرسال رابط إعادة التعيين",
	"password has been reset":                                     "تمت إعادة تعيين كلمة المرور",
}
